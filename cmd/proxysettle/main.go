// Command proxysettle runs one settler program over an input channel file and
// writes the ABI encoded result as 0x prefixed hex.
//
//	proxysettle -config settler.yaml -program profit -in profit.bin -out profit.hex
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-proxysettlement/config"
	"github.com/datatrails/go-datatrails-proxysettlement/settler"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "proxysettle:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func programNames() string {
	names := make([]string, 0, len(settler.Programs()))
	for _, p := range settler.Programs() {
		names = append(names, string(p))
	}
	return strings.Join(names, "|")
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("proxysettle", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to the YAML configuration, defaults apply when empty")
	programName := flags.String("program", "", "settler program to run: "+programNames())
	inPath := flags.String("in", "-", "input channel file, - for stdin")
	outPath := flags.String("out", "-", "output file for the hex result, - for stdout")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	logger.New(cfg.LogLevel)
	defer logger.OnExit()

	program, err := settler.ParseProgram(*programName)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	input, err := readInput(*inPath, stdin)
	if err != nil {
		return err
	}

	options := []settler.ProgramOption{settler.WithTreeOptions(cfg.TreeOptions()...)}
	if fees := cfg.ServiceFeeConfigs(); len(fees) > 0 {
		options = append(options, settler.WithFeeSchedule(fees...))
	}

	out, err := settler.Run(program, bytes.NewReader(input), options...)
	if err != nil {
		logger.Sugar.Infof("program %s rejected its input: %v", program, err)
		return err
	}
	logger.Sugar.Infof("program %s: %d input bytes, %d output bytes", program, len(input), len(out))

	return writeOutput(*outPath, stdout, hexutil.Encode(out))
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeOutput(path string, stdout io.Writer, encoded string) error {
	if path == "-" {
		_, err := fmt.Fprintln(stdout, encoded)
		return err
	}
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
