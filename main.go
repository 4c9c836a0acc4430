package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/medreg/patient-registry/config"
	"github.com/medreg/patient-registry/database"
	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/web"
	"github.com/medreg/patient-registry/web/service"

	"github.com/spf13/cobra"
)

func initLogger() {
	level, err := logger.ParseLevel(config.GetLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level)
}

// initDB opens the database, waiting for it to come up if needed.
func initDB() {
	cfg := config.GetDatabaseConfig()
	err := database.InitDBWithRetry(cfg, config.GetDBInitRetries(), config.GetDBInitDelay())
	if err != nil {
		log.Fatal(err)
	}
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()
	defer logger.CloseLogger()
	initDB()

	server := web.NewServer()
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("Received SIGHUP, restarting web server")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			logger.Info("Shutting down on", sig)
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			if err := database.CloseDB(); err != nil {
				logger.Warning("close database err:", err)
			}
			return
		}
	}
}

func migrateDb() {
	initDB()
	defer database.CloseDB()
	fmt.Println("Migration done!")
}

func showAdmin() {
	initDB()
	defer database.CloseDB()

	userService := service.UserService{}
	admin, err := userService.GetAdmin()
	if err != nil {
		fmt.Println("get admin account failed:", err)
		return
	}
	fmt.Println("admin username:", admin.Username)
}

func resetAdminPassword(username string, password string) {
	initDB()
	defer database.CloseDB()

	userService := service.UserService{}
	created, err := userService.EnsureAdmin(username, password)
	switch {
	case err != nil:
		fmt.Println("reset admin password failed:", err)
	case created:
		fmt.Printf("admin account %q created\n", username)
	default:
		fmt.Printf("password of admin account %q reset\n", username)
	}
}

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatal("load .env: ", err)
	}

	var rootCmd = &cobra.Command{
		Use:   config.GetName(),
		Short: "Patient registry web application",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb()
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetName(), config.GetVersion())
		},
	}

	var adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin account",
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the admin username",
		Run: func(cmd *cobra.Command, args []string) {
			showAdmin()
		},
	}

	var resetPasswordCmd = &cobra.Command{
		Use:   "reset-password",
		Short: "Create the admin account or reset its password",
		Run: func(cmd *cobra.Command, args []string) {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			resetAdminPassword(username, password)
		},
	}

	resetPasswordCmd.Flags().String("username", config.GetAdminUsername(), "admin username")
	resetPasswordCmd.Flags().String("password", "", "new admin password")
	_ = resetPasswordCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(showCmd, resetPasswordCmd)
	rootCmd.AddCommand(runCmd, migrateCmd, versionCmd, adminCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
