package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zacy-Sokach/CustardPie/internal/api"
	"github.com/Zacy-Sokach/CustardPie/internal/tui"
	"github.com/Zacy-Sokach/CustardPie/internal/update"
	"github.com/Zacy-Sokach/CustardPie/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Stream a completion from the generate service",
		Long: `Streams a completion for the prompt to stdout.
Without a prompt the interactive generate screen is opened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if !isTerminal() {
					return errNotTerminal
				}
				return runProgram(tui.NewGenerateModel(a.client, a.cfg.GenerateModel, a.logger))
			}

			prompt := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			_, err := a.client.Generate(cmd.Context(), a.cfg.GenerateModel, prompt, func(chunk api.GenerateChunk) {
				fmt.Fprint(out, chunk.Response)
			})
			fmt.Fprintln(out)
			if err != nil {
				a.logger.Error("generate failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func (a *app) newModelsCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			var models []string
			fetch := func(ctx context.Context) error {
				var err error
				models, err = a.client.ListModels(ctx)
				return err
			}

			var err error
			if wait {
				err = utils.PollUntilSuccess(cmd.Context(), &utils.PollConfig{
					Interval: a.interval(),
					OnError: func(attempt int, err error) {
						a.logger.Warn("fetching models failed, retrying",
							zap.Int("attempt", attempt),
							zap.Error(err))
						fmt.Fprintf(cmd.ErrOrStderr(), "第 %d 次获取模型列表失败: %v\n", attempt, err)
					},
				}, fetch)
			} else {
				err = fetch(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("获取模型列表失败: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, m := range models {
				fmt.Fprintln(out, m)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "retry until the service answers")
	return cmd
}

func (a *app) newUploadCmd() *cobra.Command {
	var (
		model    string
		rag      []string
		fineTune []string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload RAG and fine-tune files for a model",
		Long: `Uploads files for a model. Folders are expanded recursively.

Example:
  custardpie upload --model support-bot --rag ./docs --finetune ./pairs.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ragFiles, err := utils.ExpandPaths(rag)
			if err != nil {
				return err
			}
			fineTuneFiles, err := utils.ExpandPaths(fineTune)
			if err != nil {
				return err
			}

			req := api.UploadRequest{
				ModelName:     model,
				RAGFiles:      ragFiles,
				FineTuneFiles: fineTuneFiles,
			}
			if req.FileCount() == 0 {
				return fmt.Errorf("没有需要上传的文件，请使用 --rag 或 --finetune")
			}

			result, err := a.client.Upload(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已上传 %d 个文件\n%s\n", req.FileCount(), result.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model name")
	cmd.Flags().StringSliceVar(&rag, "rag", nil, "RAG files or folders")
	cmd.Flags().StringSliceVar(&fineTune, "finetune", nil, "fine-tune files or folders")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func (a *app) newQueryCmd() *cobra.Command {
	var (
		model string
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "query TEXT",
		Short: "Query a model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.client.Query(cmd.Context(), model, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !raw {
				results = tui.GetMarkdownRenderer().Render(results)
			}
			fmt.Fprintln(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model name")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the response without rendering Markdown")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// updateAPIBase 非空时替换 GitHub API 地址
var updateAPIBase string

func (a *app) newVersionCmd() *cobra.Command {
	var (
		check bool
		repo  string
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CustardPie %s\n", Version)
			if !check {
				return nil
			}

			if repo == "" {
				repo = a.cfg.UpdateRepo
			}
			opts := []update.Option{update.WithRepo(repo)}
			if updateAPIBase != "" {
				opts = append(opts, update.WithAPIBase(updateAPIBase))
			}
			res, err := update.NewChecker(opts...).CheckForUpdate(cmd.Context(), Version)
			if err != nil {
				return fmt.Errorf("检查更新失败: %w", err)
			}
			if res.HasUpdate {
				fmt.Fprintf(out, "发现新版本 %s: %s\n", res.Latest, res.URL)
			} else {
				fmt.Fprintln(out, "已是最新版本")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository (owner/name) to check, defaults to update_repo in the config")
	return cmd
}
