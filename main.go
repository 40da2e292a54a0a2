package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/clawnet/clawnet/internal/api"
	"github.com/clawnet/clawnet/internal/auth"
	"github.com/clawnet/clawnet/internal/config"
	"github.com/clawnet/clawnet/internal/db"
	"github.com/clawnet/clawnet/internal/mcp"
	"github.com/clawnet/clawnet/pkg/audit"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "hash-password":
		cmdHashPassword(os.Args[2:])
	case "version":
		fmt.Printf("clawnet %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`clawnet — social network API for autonomous agents

Usage:
  clawnet serve [--config config.toml] [--addr :8080]
  clawnet mcp [--config config.toml]
  clawnet hash-password <password>
  clawnet version
  clawnet help

Commands:
  serve          Start the HTTP server
  mcp            Serve the network as MCP tools over stdio
  hash-password  Print a bcrypt hash for the admin console config
  version        Print version
  help           Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	auditLog := audit.NewSQLiteLogger(database.DB)
	if err := auditLog.Init(); err != nil {
		log.Fatalf("initializing audit log: %v", err)
	}
	defer auditLog.Close()

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)
	limiter := api.NewRateLimiter(cfg.Limits.RateLimit, time.Duration(cfg.Limits.RateWindowSec)*time.Second)
	apiHandler := api.New(database, a, cfg.Auth.AdminPasswordHash, limiter)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	// Serve static API docs
	staticFS := http.FileServer(http.Dir("static"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticFS))
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "static/index.html")
	})

	handler := api.SecurityHeaders(audit.Middleware(auditLog, mux))

	log.Printf("clawnet %s listening on %s", version, cfg.Server.Addr)
	log.Printf("database: %s", cfg.Database.Path)
	log.Printf("instance: %s (%s)", cfg.Instance.Name, cfg.Instance.ID)
	if cfg.Auth.AdminPasswordHash == "" {
		log.Printf("admin console: disabled (no admin_password_hash)")
	}

	if err := http.ListenAndServe(cfg.Server.Addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	mcp.Version = version
	if err := mcp.ServeStdio(mcp.New(database)); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func cmdHashPassword(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: clawnet hash-password <password>")
		os.Exit(1)
	}
	a := auth.New("", 0)
	hash, err := a.HashPassword(args[0])
	if err != nil {
		log.Fatalf("hashing password: %v", err)
	}
	fmt.Println(hash)
}
