// Copyright (c) 2023 Colin McRae

// Command qsieve factors composite integers from the command line.
//
//	qsieve 10023859281455311421
//	qsieve -t 8 "2^214+1"
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/fatih/color"
	"github.com/plan-systems/klog"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/config"
	"github.com/SoftSec-KAIST/Smartian-Dirichlet/qsieve"
)

func main() {
	parser := argparse.NewParser("qsieve", "quadratic-sieve integer factorization")

	number := parser.StringPositional(&argparse.Options{
		Help: "composite to factor, as a decimal or an expression like 2^214+1",
	})
	threads := parser.Int("t", "threads", &argparse.Options{
		Default: -1, Help: "sieve worker count; 0 = hardware default",
	})
	baseSize := parser.Int("b", "base-size", &argparse.Options{
		Default: -1, Help: "factor base size override; 0 = by digit count",
	})
	percent := parser.Int("p", "percent", &argparse.Options{
		Default: -1, Help: "sieve threshold percent",
	})
	interval := parser.Int("i", "interval", &argparse.Options{
		Default: -1, Help: "sieve window width",
	})
	multiplier := parser.Int("m", "multiplier", &argparse.Options{
		Default: -1, Help: "small multiplier; 1 = off, 0 = auto",
	})
	mergeLimit := parser.Int("", "merge-limit", &argparse.Options{
		Default: -1, Help: "structured elimination row-weight cap",
	})
	noPartials := parser.Flag("", "no-partials", &argparse.Options{
		Help: "disable one-large-prime relations",
	})
	timeLimit := parser.String("", "time-limit", &argparse.Options{
		Default: "", Help: "sieve phase wall-clock budget, e.g. 10m",
	})
	configPath := parser.String("c", "config", &argparse.Options{
		Default: "", Help: "path to qsieve.yaml",
	})
	verbose := parser.Flag("v", "verbose", &argparse.Options{
		Help: "log sieve progress",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(2)
	}
	if *number == "" {
		fmt.Fprint(os.Stderr, parser.Usage("missing composite argument"))
		os.Exit(2)
	}

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	_ = fset.Set("logtostderr", "true")
	if *verbose {
		_ = fset.Set("v", "2")
	}
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})
	defer klog.Flush()

	opts, err := config.Load(*configPath)
	if err != nil {
		fail("config: %v", err)
	}
	if *threads >= 0 {
		opts.Threads = *threads
	}
	if *baseSize >= 0 {
		opts.FactorBaseSize = *baseSize
	}
	if *percent >= 0 {
		opts.LowerBoundPercent = *percent
	}
	if *interval >= 0 {
		opts.IntervalSize = *interval
	}
	if *multiplier >= 0 {
		opts.Multiplier = uint64(*multiplier)
	}
	if *mergeLimit >= 0 {
		opts.MergeLimit = *mergeLimit
	}
	if *noPartials {
		opts.ProcessPartialRelations = false
	}
	if *timeLimit != "" {
		d, err := time.ParseDuration(*timeLimit)
		if err != nil {
			fail("bad --time-limit: %v", err)
		}
		opts.SieveTimeLimit = d
	}
	if !*verbose {
		opts.ReportingInterval = 0
	}

	n, err := parseComposite(*number)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	factors, err := qsieve.Factor(ctx, n, opts)
	elapsed := time.Since(started)
	if err != nil {
		if len(factors) > 0 {
			fmt.Fprintln(os.Stderr, "partial factorization:")
			printFactors(factors)
		}
		fail("%v", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("%s = ", n.String())
	printFactors(factors)
	klog.V(1).Infof("factored in %s", elapsed)
}

func printFactors(factors []*big.Int) {
	green := color.New(color.FgGreen)
	for i, f := range factors {
		if i > 0 {
			fmt.Print(" * ")
		}
		green.Print(f.String())
	}
	fmt.Println()
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "qsieve: "+format+"\n", args...)
	os.Exit(1)
}
