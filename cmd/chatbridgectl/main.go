// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// chatbridgectl is a command-line tool for checking a running
// chatbridge daemon's health, and forcing a cleanup scan, over its
// optional status endpoint.
//
// Grounded on cmd/trellis-ctl/main.go's shape as a thin HTTP client
// talking to its daemon counterpart, stripped to the two concerns
// chatbridge's status endpoint (cmd/chatbridge's /healthz, /cleanup)
// exposes — no service/workflow/worktree/trace/crash subcommands,
// since chatbridge has none of those concepts.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	version    = "0.1.0"
	apiURL     = "http://localhost:8090"
	jsonOutput = false
)

func main() {
	if env := os.Getenv("CHATBRIDGE_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	var err error
	switch cmd {
	case "health":
		err = cmdHealth()
	case "force-cleanup":
		err = cmdForceCleanup()
	case "version", "-v", "--version":
		fmt.Printf("chatbridgectl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`chatbridgectl - Check a running chatbridge daemon

Usage:
  chatbridgectl [-json] <command>

Global Flags:
  -json          Output in JSON format

Environment:
  CHATBRIDGE_API Base URL of chatbridge's health endpoint (default: http://localhost:8090)

Commands:
  health         Check daemon health
  force-cleanup  Run a cleanup scan immediately instead of waiting for the next tick
  version        Show version
  help           Show this help`)
}

type healthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func cmdHealth() error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(apiURL + "/healthz")
	if err != nil {
		return fmt.Errorf("reach chatbridge at %s: %w", apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatbridge returned %s", resp.Status)
	}

	var status healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("chatbridge: %s (version %s)\n", status.Status, status.Version)
	return nil
}

func cmdForceCleanup() error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(apiURL+"/cleanup", "application/json", nil)
	if err != nil {
		return fmt.Errorf("reach chatbridge at %s: %w", apiURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chatbridge returned %s", resp.Status)
	}

	if jsonOutput {
		fmt.Println(`{"status":"ok"}`)
		return nil
	}
	fmt.Println("chatbridge: cleanup scan triggered")
	return nil
}
