// Package main provides a CLI tool for loading materials and their lots from
// an .xlsx workbook.
//
//	seed -template materials.xlsx         write an empty workbook
//	seed -org <uuid> -file materials.xlsx import it
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"lotcost/internal/app"
	"lotcost/internal/config"
	"lotcost/internal/core/id"
	"lotcost/internal/infrastructure/importer"
	"lotcost/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	file := flag.String("file", "", "workbook to import")
	orgFlag := flag.String("org", "", "organization ID owning the imported materials")
	template := flag.String("template", "", "write an empty workbook to this path and exit")
	lotByLot := flag.Bool("lot-by-lot", false, "receive lots one by one instead of bulk insert")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *template != "" {
		if err := writeTemplate(*template); err != nil {
			log.Fatalw("failed to write template", "error", err)
		}
		log.Infow("template written", "path", *template)
		return
	}

	if *file == "" || *orgFlag == "" {
		log.Fatal("both -file and -org are required")
	}
	orgID, err := id.Parse(*orgFlag)
	if err != nil {
		log.Fatalw("invalid organization ID", "org", *orgFlag, "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("memory storage: the workbook is validated but nothing is persisted")
	}

	ctx := logger.WithLogger(context.Background(), log)

	c, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer c.Close()

	wb, err := readWorkbook(*file)
	if err != nil {
		log.Fatalw("failed to read workbook", "file", *file, "error", err)
	}

	loader := importer.NewLoader(c.TxManager, c.MaterialRepo, c.Engine)
	if !*lotByLot {
		loader.WithBulk(c.Bulk, c.Engine)
	}

	report, err := loader.Load(ctx, orgID, wb)
	if err != nil {
		log.Fatalw("import failed", "error", err)
	}
	log.Infow("seeding completed successfully", "materials", report.Materials, "lots", report.Lots)
}

func readWorkbook(path string) (*importer.Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return importer.Read(f)
}

func writeTemplate(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := importer.WriteTemplate(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
