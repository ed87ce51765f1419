package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hirepal/internal/domain"
	"hirepal/internal/usecase"
	"hirepal/internal/wire"
)

const (
	chatCommandNew  = "/new"
	chatCommandExit = "/exit"
)

var errChatExit = errors.New("exit requested")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the recruiter assistant in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		rt, err := buildRuntime(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		prompt := promptui.Prompt{Label: "You"}
		return chatLoop(cmd.Context(), rt.Service, prompt.Run, cmd.OutOrStdout(), log)
	},
}

type chatService interface {
	NewSession(ctx context.Context) (string, error)
	Ask(ctx context.Context, in usecase.AskInput) (domain.Answer, error)
	EndSession(ctx context.Context, sessionID string) error
}

// chatLoop reads questions until the user exits. readLine is promptui's Run
// in production.
func chatLoop(ctx context.Context, svc chatService, readLine func() (string, error), out io.Writer, log *zap.Logger) error {
	sessionID, err := svc.NewSession(ctx)
	if err != nil {
		return wrapf(err, "create session")
	}
	fmt.Fprintf(out, "HirePal: %s\n", usecase.Greeting)
	fmt.Fprintf(out, "(type %s to start over, %s to quit)\n\n", chatCommandNew, chatCommandExit)

	defer func() {
		if err := svc.EndSession(context.WithoutCancel(ctx), sessionID); err != nil {
			log.Debug("ending chat session", zap.Error(err))
		}
	}()

	for {
		line, err := readLine()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		next, err := handleChatLine(ctx, svc, sessionID, strings.TrimSpace(line), out, log)
		if errors.Is(err, errChatExit) {
			return nil
		}
		if err != nil {
			return err
		}
		sessionID = next
	}
}

func handleChatLine(ctx context.Context, svc chatService, sessionID, line string, out io.Writer, log *zap.Logger) (string, error) {
	switch line {
	case "":
		return sessionID, nil
	case chatCommandExit:
		return sessionID, errChatExit
	case chatCommandNew:
		_ = svc.EndSession(ctx, sessionID)
		id, err := svc.NewSession(ctx)
		if err != nil {
			return sessionID, wrapf(err, "create session")
		}
		fmt.Fprintf(out, "HirePal: %s\n\n", usecase.Greeting)
		return id, nil
	}

	answer, err := svc.Ask(ctx, usecase.AskInput{SessionID: sessionID, Question: line})
	if err != nil {
		_, body := wire.StatusFor(err)
		fmt.Fprintf(out, "HirePal: %s\n\n", body.Message)
		return sessionID, nil
	}
	resp, err := wire.Render(answer)
	if err != nil {
		log.Error("answer failed wire validation", zap.Error(err))
	}
	renderResponse(out, resp)
	return sessionID, nil
}

func renderResponse(out io.Writer, r wire.Response) {
	switch content := r.Content.(type) {
	case []wire.CandidateCard:
		fmt.Fprintf(out, "HirePal: %s\n", r.LLMResponse)
		for i, c := range content {
			fmt.Fprintf(out, "\n  %d. %s (%s)\n", i+1, c.Name, c.Role)
			if len(c.Skills) > 0 {
				fmt.Fprintf(out, "     skills: %s\n", strings.Join(c.Skills, ", "))
			}
			fmt.Fprintf(out, "     location: %s | experience: %s\n", c.Location, c.Experience)
			fmt.Fprintf(out, "     %s\n", c.Text)
			fmt.Fprintf(out, "     cv: %s\n", c.CVURL)
		}
		fmt.Fprintln(out)
	case string:
		if r.Type == wire.TypeError {
			fmt.Fprintf(out, "HirePal (error): %s\n\n", content)
			return
		}
		fmt.Fprintf(out, "HirePal: %s\n\n", content)
	}
}
