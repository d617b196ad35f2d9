package main

import (
	"fmt"
	"io"
)

// runHelpCmd prints general or per-command help.
func runHelpCmd(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}
	switch args[0] {
	case "convert":
		printConvertUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "completion":
		printCompletionUsage(env.Stdout)
	default:
		fmt.Fprintf(env.Stderr, "unknown help topic: %s\n\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docconv <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  convert    Convert files (images, PDF, office, text)")
	fmt.Fprintln(w, "  serve      Run the HTTP conversion API")
	fmt.Fprintln(w, "  doctor     Check installed converters and environment")
	fmt.Fprintln(w, "  completion Generate shell completion script")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'docconv help <command>' for details on a specific command.")
}

func printCommonFlags(w io.Writer) {
	fmt.Fprintln(w, "Common:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "      --log-level <s>       trace, debug, info, warn, error")
	fmt.Fprintln(w, "      --log-format <s>      console or json")
	fmt.Fprintln(w, "  -q, --quiet               Only print errors")
}

// printConvertUsage prints usage for the convert command.
func printConvertUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docconv convert <file>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert files. Several images become one PDF, in argument order.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Conversion:")
	fmt.Fprintln(w, "      --class <s>           images-to-pdf, pdf-to-images, office-to-pdf, text-to-pdf")
	fmt.Fprintln(w, "                            (default: inferred from the first file)")
	fmt.Fprintln(w, "      --quality <s>         low, medium, high, ultra")
	fmt.Fprintln(w, "  -f, --format <s>          pdf-to-images output: png or jpeg")
	fmt.Fprintln(w, "  -e, --enhance <s>         images-to-pdf: brightness, contrast, sharpness,")
	fmt.Fprintln(w, "                            color, auto, grayscale, blur, none")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-converter timeout (e.g. 90s)")
	fmt.Fprintln(w, "      --max-concurrent <n>  Concurrent conversion slots")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory")
	fmt.Fprintln(w, "  -n, --name <s>            Output file name")
	fmt.Fprintln(w, "      --requester <s>       Requester ID recorded in events")
	fmt.Fprintln(w)
	printCommonFlags(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  docconv convert scan1.jpg scan2.jpg -o scans.pdf")
	fmt.Fprintln(w, "  docconv convert report.pdf --quality high -f jpeg")
	fmt.Fprintln(w, "  docconv convert notes.md -o out/")
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docconv serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run the HTTP conversion API.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Endpoints:")
	fmt.Fprintln(w, "  POST /v1/convert          multipart form: file..., class, quality, format,")
	fmt.Fprintln(w, "                            enhancement, output_name, requester_id")
	fmt.Fprintln(w, "  GET  /v1/strategies       ?class= to filter")
	fmt.Fprintln(w, "  GET  /healthz             tools and counters")
	fmt.Fprintln(w, "  GET  /metrics             Prometheus metrics")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "  -a, --addr <addr>         Listen address (default :8080)")
	fmt.Fprintln(w, "      --lightweight-bypass  In-process conversions skip the concurrency gate")
	fmt.Fprintln(w, "      --redis-addr <addr>   Publish events to a Redis stream")
	fmt.Fprintln(w, "      --events-log          Log every conversion event")
	fmt.Fprintln(w)
	printCommonFlags(w)
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docconv doctor [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Report installed converters, available conversions and workspace health.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "      --json                Print the report as JSON")
	fmt.Fprintln(w, "      --print-config        Print the effective configuration and exit")
	fmt.Fprintln(w)
	printCommonFlags(w)
}
