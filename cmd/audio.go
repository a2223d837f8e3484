package cmd

import (
	"errors"
	"fmt"
	"log"

	"audiohub/config"
	"audiohub/db"
	"audiohub/repository"

	"github.com/spf13/cobra"
)

var audioActivate bool

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Check audio file status",
	Long:  `Report total, active and inactive audio file counts, list inactive records, and with --activate flip all inactive records back to active. Operational recovery tooling for accidental mass soft-deletion.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.DB.Close()

		audioRepo := repository.NewMySQLAudioFileRepository()
		userRepo := repository.NewMySQLUserRepository()

		counts, err := audioRepo.CountAudioFiles()
		if err != nil {
			log.Fatalf("Failed to count audio files: %v", err)
		}

		fmt.Println("\n=== Audio Files Status ===")
		fmt.Printf("Total files: %d\n", counts.Total)
		fmt.Printf("Active files: %d\n", counts.Active)
		fmt.Printf("Inactive files: %d\n", counts.Inactive)

		if counts.Inactive == 0 {
			return
		}

		inactive, err := audioRepo.GetInactiveAudioFiles()
		if err != nil {
			log.Fatalf("Failed to list inactive audio files: %v", err)
		}

		fmt.Println("\nInactive audio files:")
		for _, f := range inactive {
			username := "(unknown user)"
			owner, err := userRepo.GetUserByID(f.UserID)
			if err == nil {
				username = owner.Username
			} else if !errors.Is(err, repository.ErrNotFound) {
				log.Fatalf("Failed to resolve owner for audio file %d: %v", f.ID, err)
			}
			fmt.Printf("  - ID: %d, Title: %s, User: %s\n", f.ID, f.Title, username)
		}

		if audioActivate {
			n, err := audioRepo.ReactivateAllAudioFiles()
			if err != nil {
				log.Fatalf("Failed to reactivate audio files: %v", err)
			}
			fmt.Printf("\nActivated %d audio files\n", n)
		} else {
			fmt.Println("\nRun with --activate to reactivate these files")
		}
	},
}

func init() {
	audioCmd.Flags().BoolVar(&audioActivate, "activate", false, "Activate all inactive audio files")
	rootCmd.AddCommand(audioCmd)
}
