package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/albanread/RevivalBCPL-sub000/internal/codegen"
	"github.com/albanread/RevivalBCPL-sub000/internal/execmem"
	"github.com/albanread/RevivalBCPL-sub000/internal/optimize"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
	"github.com/albanread/RevivalBCPL-sub000/internal/preprocess"
)

var (
	debug   bool
	showAsm bool
	opt     bool
)

var command = &cobra.Command{
	Use:  "bcplc [flags] <source-file>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compile(args[0])
	},
}

func init() {
	command.PersistentFlags().BoolVar(&debug, "debug", false, "emit verbose diagnostic logging")
	command.PersistentFlags().BoolVar(&showAsm, "asm", false, "print a disassembly of the generated instruction stream")
	command.PersistentFlags().BoolVar(&opt, "opt", false, "run the optimization pipeline (fold, CSE, DCE, LICM, loop specialization, inlining) before codegen")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func compile(path string) error {
	log := newLogger()

	log.Debug().Str("path", path).Msg("preprocessing")
	source, err := preprocess.New().Process(path)
	if err != nil {
		return err
	}

	log.Debug().Msg("parsing")
	program, err := parser.Parse(source)
	if err != nil {
		return err
	}

	if opt {
		log.Debug().Msg("optimizing")
		program = optimize.NewPassManager().Optimize(program)
	}

	log.Debug().Msg("generating code")
	gen := codegen.NewGenerator()
	stream, err := gen.GenerateProgram(program)
	if err != nil {
		return err
	}

	region, err := execmem.Allocate(len(stream.Instrs) * 4)
	if err != nil {
		return err
	}
	buf, err := region.Bytes()
	if err != nil {
		return err
	}
	stream.AssignAddresses(0)
	if err := stream.ResolveBranches(); err != nil {
		return err
	}
	encoded, err := stream.Bytes()
	if err != nil {
		return err
	}
	copy(buf, encoded)
	if err := region.MakeExecutable(); err != nil {
		return err
	}
	defer region.Release()

	if showAsm {
		printDisassembly(stream)
	}

	log.Info().Int("instructions", len(stream.Instrs)).Int("externalCalls", len(stream.ExternalCalls)).Msg("compiled")
	return nil
}

func printDisassembly(stream *codegen.Stream) {
	for _, in := range stream.Instrs {
		label := ""
		if in.Label != "" {
			label = in.Label + ":"
		}
		fmt.Printf("%-20s %08x  %s\n", label, in.Word, in.Mnemonic)
	}
}

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
