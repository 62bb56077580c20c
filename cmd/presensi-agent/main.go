package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hadir-sekolah/presensi/internal/config"
	"github.com/hadir-sekolah/presensi/internal/logsvc"
)

const usage = `usage: presensi-agent <command> [flags]

commands:
  attempt   check in or check out now
  wait      wait until the attendance window opens, then attempt
  status    show today's record and what is due next
  locate    acquire one position and show the distance to school

Configuration is read from PRESENSI_* environment variables and .env.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cmd := args[0]

	cfg := config.AgentFromEnv()

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	subject := fs.String("subject", cfg.SubjectID, "subject id (PRESENSI_SUBJECT_ID)")
	preview := fs.Bool("preview", false, "attempt: locate first and show the distance before submitting")
	debug := fs.Bool("debug", cfg.Debug, "log debug output")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	cfg.SubjectID = strings.TrimSpace(*subject)

	logger := logsvc.NewStdout("presensi-agent ", *debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newAgent(cfg, logger, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "presensi-agent: %v\n", err)
		return 1
	}

	switch cmd {
	case "attempt":
		return a.attempt(ctx, *preview)
	case "wait":
		return a.wait(ctx)
	case "status":
		return a.status(ctx)
	case "locate":
		return a.locate(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}
