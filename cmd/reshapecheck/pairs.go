// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomlx/reshapecheck/pkg/core/reshape"
	"github.com/gomlx/reshapecheck/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// readPairs reads the reshape requests in fileName.
func readPairs(fileName string) ([]reshape.Request, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open reshape pairs file %q", fileName)
	}
	defer func() { _ = f.Close() }()
	requests, err := parsePairs(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "in file %q", fileName)
	}
	return requests, nil
}

// parsePairs parses one request per line, formatted as "<input> -> <target>" or "<input>\t<target>".
func parsePairs(r io.Reader) ([]reshape.Request, error) {
	var requests []reshape.Request
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		inputText, targetText, found := strings.Cut(line, "->")
		if !found {
			inputText, targetText, found = strings.Cut(line, "\t")
		}
		if !found {
			return nil, errors.Errorf("line %d: expected \"<input> -> <target>\", got %q", lineNum, line)
		}
		input, err := shapes.Parse(inputText)
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d: input shape", lineNum)
		}
		target, err := shapes.Parse(targetText)
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d: target shape", lineNum)
		}
		requests = append(requests, reshape.Request{Input: input, Target: target})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read reshape pairs")
	}
	return requests, nil
}

// validate the requests, displaying a progress bar if there is more than one.
func validate(ctx context.Context, validator *reshape.Validator, requests []reshape.Request) []reshape.Verdict {
	klog.V(1).Infof("%s: %d reshapes", progressDescription(validator), len(requests))
	if len(requests) <= 1 {
		return validator.ValidateAll(ctx, requests, nil)
	}
	bar := progressbar.NewOptions(len(requests),
		progressbar.OptionSetDescription(progressDescription(validator)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish())
	verdicts := validator.ValidateAll(ctx, requests, func(int, reshape.Verdict) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	return verdicts
}

// progressDescription describes the validation run: the deadline each reshape gets from the validator.
func progressDescription(validator *reshape.Validator) string {
	if validator.Timeout() <= 0 {
		return "Validating reshapes"
	}
	return fmt.Sprintf("Validating reshapes (timeout %s each)", validator.Timeout())
}
