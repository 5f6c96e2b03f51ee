package cmd

import (
	"fmt"
	"os"
)

const version = "v1.1.0"

func Execute(args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		runRun(args[1:])
	case "guppy-command":
		runGuppyCommand(args[1:])
	case "merge":
		runMerge(args[1:])
	case "rename":
		runRename(args[1:])
	case "filter":
		runFilter(args[1:])
	case "count":
		runCount(args[1:])
	case "versions":
		runVersions(args[1:])
	case "-v", "--version", "version":
		fmt.Println("ontkit " + version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "ontkit - basecall, demultiplex and filter ONT reads")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  ontkit <command> [options]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run            Full pipeline: basecall -> merge -> rename (optional) -> filter -> count")
	fmt.Fprintln(os.Stderr, "  guppy-command  Print the guppy_basecaller command without running it")
	fmt.Fprintln(os.Stderr, "  merge          Concatenate guppy FASTQ fragments per barcode")
	fmt.Fprintln(os.Stderr, "  rename         Rename per-barcode FASTQ files from a barcode,sample key file")
	fmt.Fprintln(os.Stderr, "  filter         Filter merged FASTQ files with filtlong")
	fmt.Fprintln(os.Stderr, "  count          Count reads and bases into readStats.txt")
	fmt.Fprintln(os.Stderr, "  versions       Record external tool versions")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'ontkit <command> -h' for command-specific options.")
}
