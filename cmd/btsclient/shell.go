package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var errNestedShell = errors.New("already in a shell")

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "run commands interactively over one session",
		Action: func(c *cli.Context) error {
			cl, err := connected(c)
			if err != nil {
				return err
			}
			if cl.interactive {
				return errNestedShell
			}
			cl.interactive = true
			defer func() {
				cl.interactive = false
			}()

			sh := &shell{app: c.App, ctx: c}
			sh.run()
			return nil
		},
	}
}

type shell struct {
	app *cli.App
	ctx *cli.Context
}

func (sh *shell) run() {
	initialState, _ := term.GetState(int(os.Stdin.Fd()))
	handleExit := func() {
		if initialState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), initialState)
		}
		_ = exec.Command("stty", "sane").Run()
	}

	options := append(getStyleOptions(),
		prompt.OptionPrefix("bts> "),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			in = strings.TrimSpace(in)
			return breakline && (in == "exit" || in == "quit")
		}),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlC,
			Fn: func(buf *prompt.Buffer) {
				fmt.Println("Exiting btsclient shell.")
				handleExit()
				os.Exit(0)
			},
		}),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlD,
			Fn:  func(buf *prompt.Buffer) {},
		}),
	)

	prompt.New(sh.execute, sh.complete, options...).Run()
	handleExit()
}

// execute runs one line as a btsclient command on the shared client.
func (sh *shell) execute(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "exit", "quit":
		return
	case "help":
		args = []string{"--help"}
	}

	if err := sh.app.RunContext(sh.ctx.Context, append([]string{sh.app.Name}, args...)); err != nil {
		fmt.Fprintf(sh.app.Writer, "error: %s\n", err)
	}
}

func (sh *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	if strings.Contains(before, " ") {
		return []prompt.Suggest{}
	}

	suggestions := []prompt.Suggest{
		{Text: "help", Description: "list commands"},
		{Text: "exit", Description: "leave the shell"},
	}
	for _, cmd := range sh.app.VisibleCommands() {
		if cmd.Name == "shell" {
			continue
		}
		suggestions = append(suggestions, prompt.Suggest{Text: cmd.Name, Description: cmd.Usage})
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

func getStyleOptions() []prompt.Option {
	return []prompt.Option{
		prompt.OptionTitle("btsclient"),
		prompt.OptionPrefixTextColor(prompt.Yellow),
		prompt.OptionPreviewSuggestionTextColor(prompt.Cyan),

		prompt.OptionSuggestionTextColor(prompt.White),
		prompt.OptionSuggestionBGColor(prompt.DarkBlue),

		prompt.OptionDescriptionTextColor(prompt.Black),
		prompt.OptionDescriptionBGColor(prompt.Yellow),

		prompt.OptionSelectedSuggestionTextColor(prompt.Black),
		prompt.OptionSelectedSuggestionBGColor(prompt.Yellow),

		prompt.OptionSelectedDescriptionTextColor(prompt.White),
		prompt.OptionSelectedDescriptionBGColor(prompt.DarkBlue),
	}
}
