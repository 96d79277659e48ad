package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/a3tai/pdf-to-docx/internal/config"
	"github.com/a3tai/pdf-to-docx/internal/convert"
	"github.com/a3tai/pdf-to-docx/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the configured level.
func setupLogging(cfg *config.Config) {
	log.SetOutput(os.Stderr)
	if cfg.IsDebug() {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}
	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	result, err := convert.Path(cfg.Input, cfg.Output, cfg.ConvertOptions())
	if err != nil {
		if errors.Is(err, pdf.ErrEncrypted) {
			log.Fatalf("Cannot convert %s: the document is encrypted", cfg.Input)
		}
		log.Fatalf("Conversion failed: %v", err)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}
	fmt.Printf("Converted %s -> %s (%d pages, %d units", cfg.Input, result.OutputPath,
		result.Pages, result.Units)
	if result.Fields > 0 {
		fmt.Printf(", %d form fields", result.Fields)
	}
	if result.OutlineEntries > 0 {
		fmt.Printf(", %d outline entries", result.OutlineEntries)
	}
	fmt.Println(")")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("pdf-to-docx\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
