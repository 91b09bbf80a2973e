package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/northbeam-labs/luahost"
	"github.com/northbeam-labs/luahost/sandboxfs"
)

var (
	cfgFile string
	red     = color.New(color.FgRed).SprintfFunc()
)

func init() {
	cobra.OnInitialize(initConfig)
	viper.SetEnvPrefix("luahost")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "env", "", "YAML file overlaid onto the script-visible env table")
	rootCmd.PersistentFlags().StringP("project", "p", ".", "Project root scripts are sandboxed to")
	rootCmd.PersistentFlags().StringP("code", "c", "", "Code to evaluate, instead of a script file")
	rootCmd.PersistentFlags().Bool("suspending", false, "Run as a suspendable invocation rather than immediate")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().Bool("timing", false, "Show timing information")

	viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("code", rootCmd.PersistentFlags().Lookup("code"))
	viper.BindPFlag("suspending", rootCmd.PersistentFlags().Lookup("suspending"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("timing", rootCmd.PersistentFlags().Lookup("timing"))

	viper.AutomaticEnv()
}

func initConfig() {
	if viper.GetBool("no-color") {
		color.NoColor = true
	}
}

func fatal(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s\n", red(msg, args...))
	os.Exit(1)
}

var rootCmd = &cobra.Command{
	Use:   "luahost",
	Short: "Run a sandboxed Lua script against the luahost embedded runtime",
	Args:  cobra.MaximumNArgs(1),

	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		projectDir := viper.GetString("project")
		sandbox, err := sandboxfs.New(projectDir)
		if err != nil {
			fatal("cannot root sandbox at %q: %s", projectDir, err.Error())
		}

		env, err := loadEnvOverlay(cfgFile)
		if err != nil {
			fatal("%s", err.Error())
		}

		scheduler := newMainThreadScheduler()
		defer scheduler.stop()

		rt, err := luahost.New(sandbox, sandbox,
			luahost.WithEnv(env),
			luahost.WithUIScheduler(scheduler),
		)
		if err != nil {
			fatal("%s", err.Error())
		}
		defer rt.Close()

		source, name, err := readSource(args)
		if err != nil {
			fatal("%s", err.Error())
		}

		code, err := rt.Read(source, name)
		if err != nil {
			fatal("%s", err.Error())
		}

		start := time.Now()

		var result any
		if viper.GetBool("suspending") {
			done := make(chan struct{})
			rt.EvalSuspending(ctx, code, func(r any, evalErr error) {
				result, err = r, evalErr
				close(done)
			})
			<-done
		} else {
			result, err = rt.Eval(ctx, code)
		}

		if err != nil {
			fatal("%s", err.Error())
		}
		if result != nil {
			fmt.Println(result)
		}
		if viper.GetBool("timing") {
			fmt.Printf("%v\n", time.Since(start))
		}
	},
}

func readSource(args []string) (source, name string, err error) {
	if code := viper.GetString("code"); code != "" {
		if len(args) > 0 {
			return "", "", fmt.Errorf("cannot specify both a script file and -c")
		}
		return code, "<code>", nil
	}
	if len(args) == 0 {
		return "", "", fmt.Errorf("a script path or -c is required")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", err
	}
	return string(data), args[0], nil
}

func loadEnvOverlay(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var overlay map[string]any
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return overlay, nil
}
