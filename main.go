// NN-512 (https://NN-512.com)
//
// Copyright (C) 2019 [
//     37ef ced3 3727 60b4
//     3c29 f9c6 dc30 d518
//     f4f3 4106 6964 cab4
//     a06f c1a3 83fd 090e
// ]
//
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in
//    the documentation and/or other materials provided with the
//    distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
// "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
// LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
// A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
// HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
// LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"igemm/internal/compile"
	"igemm/internal/doc"
	"igemm/internal/example"
	"igemm/internal/version"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type flags struct {
	out     string
	jobs    int
	verbose bool
}

func logger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func readTuning(from string) (string, error) {
	if from == "-" {
		text, err := io.ReadAll(os.Stdin)
		return string(text), err
	}
	text, err := os.ReadFile(from)
	return string(text), err
}

// write puts each kernel in DIR/NAME.s and the report in DIR/report.txt.
func write(dir string, res *compile.Result) error {
	const perm os.FileMode = 0666
	for _, k := range res.Kernels {
		path := filepath.Join(dir, k.Desc.Name+".s")
		if err := os.WriteFile(path, k.Text, perm); err != nil {
			return errors.Wrap(err, "write kernel")
		}
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, "report.txt"), res.Report(), perm), "write report")
}

func cmdCompile(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile TUNING",
		Short: "Read tuning language and write kernels.",
		Long: "The TUNING argument specifies an input file that contains a\n" +
			"tuning language description of the problems to sweep. - means stdin.\n\n" +
			"Kernels are written to --out as NAME.s, with report.txt beside them.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readTuning(args[0])
			if err != nil {
				return err
			}
			opts := compile.Options{
				Jobs:   f.jobs,
				Logger: logger(cmd.ErrOrStderr(), f.verbose),
			}
			res, err := compile.Batch(cmd.Context(), text, opts)
			if res == nil {
				return err
			}
			if werr := write(f.out, res); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", ".", "output directory")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 4, "kernels authored at once")
	return cmd
}

func cmdEnumerate(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "enumerate TUNING",
		Short: "Grade and decompose every candidate without authoring.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readTuning(args[0])
			if err != nil {
				return err
			}
			opts := compile.Options{
				Enumerate: true,
				Logger:    logger(cmd.ErrOrStderr(), f.verbose),
			}
			res, err := compile.Batch(cmd.Context(), text, opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if _, err := w.Write(res.Listing()); err != nil {
				return err
			}
			_, err = w.Write(res.Report())
			return err
		},
	}
}

func cmdDoc() *cobra.Command {
	return &cobra.Command{
		Use:   "doc",
		Short: "Write documentation for the tuning language to stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(doc.Bytes())
			return err
		},
	}
}

func cmdExample() *cobra.Command {
	return &cobra.Command{
		Use:   "example NAME",
		Short: "Write tuning language for an example network to stdout.",
		Long: "The NAME argument can be:\n\n    " +
			strings.Join(example.Names(), "\n    "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := example.Generate(args[0])
			if gen == nil {
				return errors.Errorf("no example named %s", args[0])
			}
			_, err := cmd.OutOrStdout().Write(gen)
			return err
		},
	}
}

func cmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Write the version number of this program to stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), strconv.Itoa(version.Int)+"\n")
			return err
		},
	}
}

func root() *cobra.Command {
	f := new(flags)
	cmd := &cobra.Command{
		Use:           "igemm",
		Short:         "Implicit GEMM convolution kernel generator.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log every rejection")
	cmd.AddCommand(
		cmdCompile(f),
		cmdEnumerate(f),
		cmdDoc(),
		cmdExample(),
		cmdVersion(),
	)
	return cmd
}

func main() {
	if err := root().ExecuteContext(context.Background()); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
