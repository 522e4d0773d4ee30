package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/internal/version"
	"github.com/hrygo/timetable/server"
	"github.com/hrygo/timetable/store"
	"github.com/hrygo/timetable/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "timetable",
		Short: "Conflict checking and slot suggestion for class timetables.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(viper.GetString("env-file"))
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the timetable HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile := loadProfile()
			if err := instanceProfile.Validate(); err != nil {
				return err
			}
			configureLogger(instanceProfile)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				return fmt.Errorf("failed to create db driver: %w", err)
			}
			storeInstance := store.New(dbDriver, instanceProfile)

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				storeInstance.Close()
				return fmt.Errorf("failed to create server: %w", err)
			}
			if err := s.Start(ctx); err != nil {
				storeInstance.Close()
				return fmt.Errorf("failed to start server: %w", err)
			}
			printGreetings(instanceProfile)

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			<-c
			s.Shutdown(ctx)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "dotenv file to load before reading TIMETABLE_* variables")
	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("work-start", "07:30", "start of the working window (HH:MM)")
	rootCmd.PersistentFlags().String("work-end", "16:30", "end of the working window (HH:MM)")
	rootCmd.PersistentFlags().String("lunch-start", "12:00", "start of the lunch break (HH:MM)")
	rootCmd.PersistentFlags().String("lunch-end", "13:00", "end of the lunch break (HH:MM)")
	rootCmd.PersistentFlags().Bool("lunch-rule", true, "forbid onsite meetings that overlap the lunch break")

	serveCmd.Flags().String("addr", "", "address of server")
	serveCmd.Flags().Int("port", 8081, "port of server")
	serveCmd.Flags().String("data", "", "data directory")
	serveCmd.Flags().String("driver", "sqlite", `schedule backend driver: "remote", "sqlite" or "postgres"`)
	serveCmd.Flags().String("dsn", "", "database source name(aka. DSN)")
	serveCmd.Flags().String("remote-url", "", "base URL of the remote schedule API")
	serveCmd.Flags().String("school-year", "", "default school year")
	serveCmd.Flags().String("semester", "", "default semester")

	bindFlags(rootCmd, true, "env-file", "mode", "work-start", "work-end", "lunch-start", "lunch-end", "lunch-rule")
	bindFlags(serveCmd, false, "addr", "port", "data", "driver", "dsn", "remote-url", "school-year", "semester")

	viper.SetEnvPrefix("timetable")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(serveCmd, checkCmd, suggestCmd)
}

func bindFlags(cmd *cobra.Command, persistent bool, names ...string) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for _, name := range names {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	slog.Debug("env file loaded", "path", path)
	return nil
}

// loadProfile starts from the TIMETABLE_* defaults and applies any flag or
// variable viper has seen.
func loadProfile() *profile.Profile {
	p := &profile.Profile{}
	p.FromEnv()

	strs := map[string]*string{
		"mode":        &p.Mode,
		"addr":        &p.Addr,
		"data":        &p.Data,
		"driver":      &p.Driver,
		"dsn":         &p.DSN,
		"remote-url":  &p.RemoteURL,
		"school-year": &p.SchoolYear,
		"semester":    &p.Semester,
		"work-start":  &p.WorkStart,
		"work-end":    &p.WorkEnd,
		"lunch-start": &p.LunchStart,
		"lunch-end":   &p.LunchEnd,
	}
	for key, dst := range strs {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	if viper.IsSet("port") {
		p.Port = viper.GetInt("port")
	}
	if viper.IsSet("lunch-rule") {
		p.LunchRule = viper.GetBool("lunch-rule")
	}
	p.Version = version.GetCurrentVersion(p.Mode)
	return p
}

func configureLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if p.Mode == "prod" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("timetable %s started successfully!\n", p.Version)
	fmt.Printf("Driver: %s\n", p.Driver)
	if p.SchoolYear != "" || p.Semester != "" {
		fmt.Printf("Default term: %s %s\n", p.SchoolYear, p.Semester)
	}
	if len(p.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", p.Port)
		fmt.Printf("Accessing the API via http://localhost:%d/api/v1/timetable\n", p.Port)
	} else {
		fmt.Printf("Server running on address %s and port %d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
