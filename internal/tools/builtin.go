package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/psantana5/toolshim/internal/bundle"
	"github.com/psantana5/toolshim/internal/exitguard"
	"github.com/psantana5/toolshim/internal/stdio"
)

// BuiltinBundle is the location of the in-process bundle.
const BuiltinBundle = "builtin"

// Builtins returns small in-process tools, handy for checking a host's
// wiring without a JVM:
//
//	echo ARGS...   writes ARGS to stdout, closes it and exits 0
//	exit CODE      asks to exit with CODE
func Builtins() bundle.Static {
	return bundle.Static{
		"echo": echo,
		"exit": exit,
	}
}

func echo(ctx context.Context, streams stdio.Streams, args []string) error {
	fmt.Fprintln(streams.Stdout, strings.Join(args, " "))
	// like a careless tool: close what it was given, then exit
	streams.Stdout.Close()
	exitguard.Exit(0)
	return nil
}

func exit(ctx context.Context, streams stdio.Streams, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: exit CODE")
	}
	code, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("exit: invalid code %q", args[0])
	}
	exitguard.Exit(code)
	return nil
}
