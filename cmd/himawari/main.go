package main

import (
	"fmt"
	"os"

	"github.com/bdobrica/Himawari/common/environment"
	"github.com/bdobrica/Himawari/common/version"
	"github.com/bdobrica/Himawari/internal/himawari/app"
	"github.com/bdobrica/Himawari/internal/himawari/matrix"
)

func main() {
	fmt.Printf("Himawari Provisioning Assistant\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config := loadConfig()

	if config.Matrix.Homeserver == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_HOMESERVER is required\n")
		os.Exit(1)
	}
	if config.Matrix.UserID == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_USER_ID is required\n")
		os.Exit(1)
	}
	if config.Matrix.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_ACCESS_TOKEN is required\n")
		os.Exit(1)
	}
	if len(config.Matrix.Rooms) == 0 {
		fmt.Fprintf(os.Stderr, "Error: MATRIX_ROOMS is required\n")
		os.Exit(1)
	}

	himawari, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Himawari: %v\n", err)
		os.Exit(1)
	}
	defer himawari.Stop()

	if err := himawari.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Himawari: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from environment variables.
func loadConfig() *app.Config {
	return &app.Config{
		DatabasePath: environment.StringOr("DATABASE_PATH", "./himawari.db"),
		Matrix: matrix.Config{
			Homeserver:  environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:      environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken: environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
			Rooms:       environment.StringSliceOr("MATRIX_ROOMS", nil),
		},
		PermissionsMatrixPath: environment.StringOr("PERMISSIONS_MATRIX_PATH", ""),
		DirectoryFixturePath:  environment.StringOr("DIRECTORY_FIXTURE_PATH", ""),
		UsersFilePath:         environment.StringOr("USERS_FILE_PATH", ""),
		SessionTTL:            environment.DurationOr("SESSION_TTL", 0),

		NLUAPIKey:   environment.StringOr("NLU_API_KEY", ""),
		NLUEndpoint: environment.StringOr("NLU_ENDPOINT", ""),
		NLUModel:    environment.StringOr("NLU_MODEL", ""),

		PipelineEndpoint: environment.StringOr("PIPELINE_ENDPOINT", ""),
		PipelineToken:    environment.StringOr("PIPELINE_TOKEN", ""),
		JobImage:         environment.StringOr("JOB_IMAGE", ""),
	}
}
