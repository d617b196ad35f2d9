package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	docconv "github.com/alnah/go-docconv"
)

// Shell represents a supported shell for completion generation.
type Shell string

// Supported shells for completion.
const (
	ShellBash       Shell = "bash"
	ShellZsh        Shell = "zsh"
	ShellFish       Shell = "fish"
	ShellPowerShell Shell = "powershell"
)

// ErrUnsupportedShell is returned when an unknown shell is requested.
var ErrUnsupportedShell = errors.New("unsupported shell")

// flagType represents the completion type for a flag.
type flagType int

const (
	flagString flagType = iota // default
	flagBool
	flagInt
	flagEnum // has predefined values
	flagFile // file with glob pattern
)

// flagDef describes a flag for completion purposes.
type flagDef struct {
	Long     string   // --output
	Short    string   // -o (empty if none)
	Type     flagType // completion type
	Desc     string   // help text
	Values   []string // for enum flags
	FileGlob string   // for file flags
}

// commandDef describes a command for completion.
type commandDef struct {
	Name       string
	Desc       string
	Flags      []flagDef
	TakesFiles bool     // accepts file arguments
	Args       []string // fixed positional values (help topics, shells)
}

// completionMeta holds completion-specific metadata for flags.
// Flag names, types, and descriptions come from the FlagSet.
type completionMeta struct {
	Values   []string // enum values
	FileGlob string   // file glob pattern
}

// flagCompletionMeta maps flag names to their completion metadata.
func flagCompletionMeta() map[string]completionMeta {
	classes := make([]string, 0, len(docconv.Classes()))
	for _, c := range docconv.Classes() {
		classes = append(classes, string(c))
	}
	qualities := make([]string, 0, len(docconv.Qualities()))
	for _, q := range docconv.Qualities() {
		qualities = append(qualities, string(q))
	}

	return map[string]completionMeta{
		"class":      {Values: classes},
		"quality":    {Values: qualities},
		"format":     {Values: []string{string(docconv.FormatPNG), string(docconv.FormatJPEG)}},
		"enhance":    {Values: []string{"none", "auto", "brightness", "contrast", "sharpness", "color", "grayscale", "blur"}},
		"log-level":  {Values: []string{"trace", "debug", "info", "warn", "error"}},
		"log-format": {Values: []string{"console", "json"}},
		"config":     {FileGlob: "*.yaml,*.yml"},
		"output":     {FileGlob: "*.pdf,*.zip"},
	}
}

// extractFlagsFromFlagSet extracts flag definitions from a pflag.FlagSet.
// Enriches with completion metadata from flagCompletionMeta.
func extractFlagsFromFlagSet(fs *flag.FlagSet) []flagDef {
	meta := flagCompletionMeta()
	var flags []flagDef

	fs.VisitAll(func(f *flag.Flag) {
		fd := flagDef{
			Long:  f.Name,
			Short: f.Shorthand,
			Desc:  f.Usage,
		}

		switch f.Value.Type() {
		case "bool":
			fd.Type = flagBool
		case "int", "int64", "uint", "uint64":
			fd.Type = flagInt
		default:
			fd.Type = flagString
		}

		if m, ok := meta[f.Name]; ok {
			if len(m.Values) > 0 {
				fd.Type = flagEnum
				fd.Values = m.Values
			} else if m.FileGlob != "" {
				fd.Type = flagFile
				fd.FileGlob = m.FileGlob
			}
		}

		flags = append(flags, fd)
	})

	return flags
}

// getCommands returns the command registry for completion.
// Flags come from the same registration functions the parsers use.
func getCommands() []commandDef {
	convertFS := newFlagSet("convert")
	addConvertFlags(convertFS, &convertFlags{})
	serveFS := newFlagSet("serve")
	addServeFlags(serveFS, &serveFlags{})
	doctorFS := newFlagSet("doctor")
	addDoctorFlags(doctorFS, &doctorFlags{})

	return []commandDef{
		{
			Name:       "convert",
			Desc:       "Convert files (images, PDF, office, text)",
			Flags:      extractFlagsFromFlagSet(convertFS),
			TakesFiles: true,
		},
		{
			Name:  "serve",
			Desc:  "Run the HTTP conversion API",
			Flags: extractFlagsFromFlagSet(serveFS),
		},
		{
			Name:  "doctor",
			Desc:  "Check installed converters and environment",
			Flags: extractFlagsFromFlagSet(doctorFS),
		},
		{
			Name: "version",
			Desc: "Show version information",
		},
		{
			Name: "help",
			Desc: "Show help for a command",
			Args: []string{"convert", "serve", "doctor", "completion"},
		},
		{
			Name: "completion",
			Desc: "Generate shell completion script",
			Args: []string{string(ShellBash), string(ShellZsh), string(ShellFish), string(ShellPowerShell)},
		},
	}
}

// GenerateCompletion writes shell completion script to w.
// Returns error if shell is unsupported or write fails.
func GenerateCompletion(w io.Writer, shell Shell) error {
	var b strings.Builder
	switch shell {
	case ShellBash:
		writeBash(&b, getCommands())
	case ShellZsh:
		writeZsh(&b, getCommands())
	case ShellFish:
		writeFish(&b, getCommands())
	case ShellPowerShell:
		writePowerShell(&b, getCommands())
	default:
		return fmt.Errorf("%w: %q (supported: bash, zsh, fish, powershell)", ErrUnsupportedShell, shell)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// runCompletionCmd handles the completion command.
func runCompletionCmd(args []string, env *Environment) int {
	if len(args) == 0 {
		printCompletionUsage(env.Stdout)
		return ExitSuccess
	}
	if err := GenerateCompletion(env.Stdout, Shell(args[0])); err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		if errors.Is(err, ErrUnsupportedShell) {
			return ExitUsage
		}
		return ExitGeneral
	}
	return ExitSuccess
}

func commandNames(cmds []commandDef) string {
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return strings.Join(names, " ")
}

func flagWords(flags []flagDef) string {
	var words []string
	for _, f := range flags {
		words = append(words, "--"+f.Long)
		if f.Short != "" {
			words = append(words, "-"+f.Short)
		}
	}
	return strings.Join(words, " ")
}

func writeBash(b *strings.Builder, cmds []commandDef) {
	b.WriteString("# bash completion for docconv\n")
	b.WriteString("_docconv_completions() {\n")
	b.WriteString("    local cur prev cmd\n")
	b.WriteString("    cur=\"${COMP_WORDS[COMP_CWORD]}\"\n")
	b.WriteString("    prev=\"${COMP_WORDS[COMP_CWORD-1]}\"\n")
	b.WriteString("    cmd=\"${COMP_WORDS[1]}\"\n\n")
	b.WriteString("    if [[ ${COMP_CWORD} -eq 1 ]]; then\n")
	fmt.Fprintf(b, "        COMPREPLY=($(compgen -W \"%s\" -- \"$cur\"))\n", commandNames(cmds))
	b.WriteString("        return\n    fi\n\n")
	b.WriteString("    case \"$cmd\" in\n")
	for _, c := range cmds {
		if len(c.Flags) == 0 && len(c.Args) == 0 {
			continue
		}
		fmt.Fprintf(b, "    %s)\n", c.Name)
		if len(c.Args) > 0 {
			fmt.Fprintf(b, "        COMPREPLY=($(compgen -W \"%s\" -- \"$cur\"))\n", strings.Join(c.Args, " "))
			b.WriteString("        ;;\n")
			continue
		}
		b.WriteString("        case \"$prev\" in\n")
		for _, f := range c.Flags {
			switch f.Type {
			case flagEnum:
				fmt.Fprintf(b, "            %s) COMPREPLY=($(compgen -W \"%s\" -- \"$cur\")); return ;;\n",
					bashFlagPattern(f), strings.Join(f.Values, " "))
			case flagFile:
				fmt.Fprintf(b, "            %s) COMPREPLY=($(compgen -f -- \"$cur\")); return ;;\n", bashFlagPattern(f))
			case flagString, flagInt:
				fmt.Fprintf(b, "            %s) return ;;\n", bashFlagPattern(f))
			}
		}
		b.WriteString("        esac\n")
		b.WriteString("        if [[ \"$cur\" == -* ]]; then\n")
		fmt.Fprintf(b, "            COMPREPLY=($(compgen -W \"%s\" -- \"$cur\"))\n", flagWords(c.Flags))
		if c.TakesFiles {
			b.WriteString("        else\n")
			b.WriteString("            COMPREPLY=($(compgen -f -- \"$cur\"))\n")
		}
		b.WriteString("        fi\n        ;;\n")
	}
	b.WriteString("    esac\n}\n\n")
	b.WriteString("complete -F _docconv_completions docconv\n")
}

func bashFlagPattern(f flagDef) string {
	if f.Short != "" {
		return "-" + f.Short + "|--" + f.Long
	}
	return "--" + f.Long
}

func writeZsh(b *strings.Builder, cmds []commandDef) {
	b.WriteString("#compdef docconv\n\n")
	b.WriteString("_docconv() {\n")
	b.WriteString("    local -a commands\n")
	b.WriteString("    commands=(\n")
	for _, c := range cmds {
		fmt.Fprintf(b, "        '%s:%s'\n", c.Name, zshQuote(c.Desc))
	}
	b.WriteString("    )\n\n")
	b.WriteString("    if (( CURRENT == 2 )); then\n")
	b.WriteString("        _describe 'command' commands\n")
	b.WriteString("        return\n    fi\n\n")
	b.WriteString("    case \"$words[2]\" in\n")
	for _, c := range cmds {
		if len(c.Flags) == 0 && len(c.Args) == 0 {
			continue
		}
		fmt.Fprintf(b, "    %s)\n", c.Name)
		if len(c.Args) > 0 {
			fmt.Fprintf(b, "        _values '%s' %s\n", c.Name, strings.Join(c.Args, " "))
			b.WriteString("        ;;\n")
			continue
		}
		b.WriteString("        _arguments -s")
		for _, f := range c.Flags {
			b.WriteString(" \\\n            ")
			b.WriteString(zshFlagSpec(f))
		}
		if c.TakesFiles {
			b.WriteString(" \\\n            '*:file:_files'")
		}
		b.WriteString("\n        ;;\n")
	}
	b.WriteString("    esac\n}\n\n")
	b.WriteString("compdef _docconv docconv\n")
}

func zshFlagSpec(f flagDef) string {
	var action string
	switch f.Type {
	case flagEnum:
		action = ":" + f.Long + ":(" + strings.Join(f.Values, " ") + ")"
	case flagFile:
		action = ":file:_files"
	case flagString, flagInt:
		action = ":" + f.Long + ":"
	}
	desc := "[" + zshQuote(f.Desc) + "]"
	if f.Short != "" {
		return "'(-" + f.Short + " --" + f.Long + ")'{-" + f.Short + ",--" + f.Long + "}'" + desc + action + "'"
	}
	return "'--" + f.Long + desc + action + "'"
}

// zshQuote escapes text for a single-quoted _arguments spec.
func zshQuote(s string) string {
	r := strings.NewReplacer("'", "'\\''", "[", "\\[", "]", "\\]", ":", "\\:")
	return r.Replace(s)
}

func writeFish(b *strings.Builder, cmds []commandDef) {
	b.WriteString("# fish completion for docconv\n")
	b.WriteString("complete -c docconv -f\n")
	for _, c := range cmds {
		fmt.Fprintf(b, "complete -c docconv -n __fish_use_subcommand -a %s -d '%s'\n", c.Name, fishQuote(c.Desc))
	}
	for _, c := range cmds {
		cond := fmt.Sprintf("-n '__fish_seen_subcommand_from %s'", c.Name)
		for _, a := range c.Args {
			fmt.Fprintf(b, "complete -c docconv %s -a %s\n", cond, a)
		}
		for _, f := range c.Flags {
			line := "complete -c docconv " + cond + " -l " + f.Long
			if f.Short != "" {
				line += " -s " + f.Short
			}
			switch f.Type {
			case flagEnum:
				line += " -xa '" + strings.Join(f.Values, " ") + "'"
			case flagFile:
				line += " -rF"
			case flagString, flagInt:
				line += " -x"
			}
			b.WriteString(line + " -d '" + fishQuote(f.Desc) + "'\n")
		}
		if c.TakesFiles {
			fmt.Fprintf(b, "complete -c docconv %s -F\n", cond)
		}
	}
}

func fishQuote(s string) string {
	return strings.NewReplacer("\\", "\\\\", "'", "\\'").Replace(s)
}

func writePowerShell(b *strings.Builder, cmds []commandDef) {
	b.WriteString("# PowerShell completion for docconv\n")
	b.WriteString("Register-ArgumentCompleter -Native -CommandName docconv -ScriptBlock {\n")
	b.WriteString("    param($wordToComplete, $commandAst, $cursorPosition)\n")
	b.WriteString("    $words = @($commandAst.CommandElements | ForEach-Object { $_.ToString() })\n")
	b.WriteString("    $commands = @{\n")
	for _, c := range cmds {
		values := c.Args
		if len(values) == 0 {
			values = strings.Fields(flagWords(c.Flags))
		}
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = "'" + v + "'"
		}
		fmt.Fprintf(b, "        '%s' = @(%s)\n", c.Name, strings.Join(quoted, ", "))
	}
	b.WriteString("    }\n")
	b.WriteString("    if ($words.Count -lt 2 -or ($words.Count -eq 2 -and $wordToComplete)) {\n")
	b.WriteString("        $candidates = $commands.Keys\n")
	b.WriteString("    } else {\n")
	b.WriteString("        $candidates = $commands[$words[1]]\n")
	b.WriteString("    }\n")
	b.WriteString("    $candidates | Where-Object { $_ -like \"$wordToComplete*\" } | Sort-Object | ForEach-Object {\n")
	b.WriteString("        [System.Management.Automation.CompletionResult]::new($_, $_, 'ParameterValue', $_)\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
}

// printCompletionUsage prints help for the completion command.
func printCompletionUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docconv completion <shell>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate shell completion script for the specified shell.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Supported shells:")
	fmt.Fprintln(w, "  bash        Bash completion script")
	fmt.Fprintln(w, "  zsh         Zsh completion script")
	fmt.Fprintln(w, "  fish        Fish completion script")
	fmt.Fprintln(w, "  powershell  PowerShell completion script")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Installation:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Bash:")
	fmt.Fprintln(w, "    # Add to ~/.bashrc:")
	fmt.Fprintln(w, "    eval \"$(docconv completion bash)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Zsh:")
	fmt.Fprintln(w, "    # Add to ~/.zshrc (before compinit):")
	fmt.Fprintln(w, "    eval \"$(docconv completion zsh)\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Fish:")
	fmt.Fprintln(w, "    docconv completion fish > ~/.config/fish/completions/docconv.fish")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  PowerShell:")
	fmt.Fprintln(w, "    # Add to $PROFILE:")
	fmt.Fprintln(w, "    docconv completion powershell | Out-String | Invoke-Expression")
}
