package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Overwrites the service catalogue from a YAML file. Unlike the startup seed,
// existing services are updated.

type servicesFile struct {
	Services []models.Service `yaml:"services"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		servicesPath = flag.String("services", "configs/config.yaml", "path to a yaml file with a services list")
		dbPath       = flag.String("db", "./data/salonbook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*servicesPath)
	if err != nil {
		return fmt.Errorf("read services: %w", err)
	}
	var file servicesFile
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return fmt.Errorf("parse services: %w", err)
	}
	if len(file.Services) == 0 {
		return fmt.Errorf("no services in yaml")
	}
	if err = config.ValidateServices(file.Services); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range file.Services {
		svc := &file.Services[i]
		_, err = db.GetService(ctx, svc.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, domain.ErrNotFound):
			created++
		default:
			return fmt.Errorf("get %s: %w", svc.ID, err)
		}
		if err = db.UpsertService(ctx, svc); err != nil {
			return fmt.Errorf("upsert %s: %w", svc.ID, err)
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
