// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/node_diagnosis/internal/app"
	"github.com/relabs-tech/node_diagnosis/internal/config"
)

func main() {
	configPath := flag.String("config", "diagnosis_config.txt", "path to the KEY=VALUE config file")
	flag.Parse()

	log.Println("starting node diagnosis service (MQTT subscriber + web API)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDiagnosisService(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
