package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/devagent/pkg/config"
	"github.com/go-go-golems/devagent/pkg/conversation"
	"github.com/go-go-golems/devagent/pkg/events"
	"github.com/go-go-golems/devagent/pkg/gateway"
	"github.com/go-go-golems/devagent/pkg/loop"
	"github.com/go-go-golems/devagent/pkg/sandbox"
	"github.com/go-go-golems/devagent/pkg/toolbox"
	"github.com/go-go-golems/devagent/pkg/tools"
	"github.com/go-go-golems/devagent/pkg/ui"
)

const chatTopic = "chat"

func newChatCommand() *cobra.Command {
	var prompt string
	var transcriptPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an agent session in the development container",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), settings, prompt, transcriptPath)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "run a single prompt instead of an interactive session")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "save the conversation transcript to this file on exit")
	cmd.Flags().String("workdir", "", "host directory to mount into the container")
	cmd.Flags().String("image", "", "container image for the sandbox")
	cmd.Flags().String("model", "", "model to use")
	_ = viper.BindPFlag("sandbox.workdir", cmd.Flags().Lookup("workdir"))
	_ = viper.BindPFlag("sandbox.image", cmd.Flags().Lookup("image"))
	_ = viper.BindPFlag("openai.model", cmd.Flags().Lookup("model"))

	return cmd
}

func runChat(ctx context.Context, settings *config.Settings, prompt string, transcriptPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor := sandbox.NewDockerExecutor(settings.Sandbox.Name,
		sandbox.WithImage(settings.Sandbox.Image),
		sandbox.WithWorkdir(settings.Sandbox.Workdir),
	)
	handle, err := executor.Start(ctx)
	if err != nil {
		return errors.Wrap(err, "start sandbox")
	}
	defer func() {
		if err := executor.Stop(context.Background(), handle); err != nil {
			log.Warn().Err(err).Msg("chat: failed to stop sandbox")
		}
	}()

	registry := tools.NewRegistry()
	box := toolbox.New(executor, handle)
	if err := box.RegisterAll(registry); err != nil {
		return err
	}
	if err := box.ConfigureGit(ctx); err != nil {
		return errors.Wrap(err, "configure git identity")
	}
	askUser, err := toolbox.NewAskUserTool(ui.PromptUser)
	if err != nil {
		return err
	}
	if err := registry.Register(*askUser); err != nil {
		return err
	}

	toolConfig := tools.DefaultConfig()
	if len(settings.Loop.AllowedTools) > 0 {
		toolConfig = toolConfig.WithAllowedTools(settings.Loop.AllowedTools)
	}
	dispatcher := tools.NewDispatcher(registry, toolConfig)

	gw := gateway.NewOpenAIGateway(settings.OpenAI.APIKey, settings.OpenAI.BaseURL,
		gateway.WithModel(settings.OpenAI.Model),
		gateway.WithMaxTokens(settings.OpenAI.MaxTokens),
	)

	router, err := events.NewEventRouter()
	if err != nil {
		return errors.Wrap(err, "create event router")
	}
	console := ui.NewConsole()
	router.AddHandler("console", chatTopic, console.Handler)

	sess := loop.NewSession(settings.Loop.SystemPrompt)
	sess.AttachSandbox(handle)
	agent := loop.New(
		loop.WithGateway(gw),
		loop.WithRegistry(registry),
		loop.WithDispatcher(dispatcher),
		loop.WithMaxIterations(settings.Loop.MaxIterations),
		loop.WithAskUserToolName(toolbox.AskUserToolName),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer func() { _ = router.Close() }()
		return router.Run(egCtx)
	})
	eg.Go(func() error {
		defer stop()
		// Derived from the group context so a router failure also cancels
		// the in-flight turn.
		loopCtx := events.WithEventSinks(egCtx, router.Sink(chatTopic))
		<-router.Running()
		if prompt != "" {
			return agent.Run(loopCtx, sess, prompt)
		}
		return interactiveSession(loopCtx, agent, sess, settings)
	})

	runErr := eg.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if transcriptPath != "" {
		if err := saveTranscript(sess.Conversation, transcriptPath); err != nil {
			log.Warn().Err(err).Str("path", transcriptPath).Msg("chat: failed to save transcript")
		}
	}
	return runErr
}

func saveTranscript(m *conversation.Manager, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create transcript file")
	}
	defer func() { _ = f.Close() }()
	return m.SaveTranscript(f)
}

// interactiveSession reads user turns from stdin until EOF or "exit".
func interactiveSession(ctx context.Context, agent *loop.Loop, sess *loop.Session, settings *config.Settings) error {
	var counter conversation.TokenCounter
	if settings.Loop.TruncateBudget > 0 {
		c, err := conversation.NewTiktokenCounter()
		if err != nil {
			return errors.Wrap(err, "create token counter")
		}
		counter = c
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		if counter != nil {
			if err := sess.Conversation.TruncateToBudget(counter, settings.Loop.TruncateBudget); err != nil {
				log.Warn().Err(err).Msg("chat: truncation failed")
			}
		}

		if err := agent.Run(ctx, sess, input); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The abort is already on screen through the event stream; keep
			// the REPL alive for the next turn.
			log.Debug().Err(err).Msg("chat: turn ended with error")
		}
	}
}
