package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/mu6m/better-datafy/internal/core/rag"
)

// JobSubmitAction はジョブを作成し、取り込みパイプラインを実行するコマンドのアクション
func JobSubmitAction(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	envFile := cmd.String("env")
	sources := cmd.StringSlice("source")

	slog.Info("ジョブ投入を開始", "name", name, "sources", len(sources))

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	svc := appCtx.Container.Service

	// 1. ソースを検証してジョブを running で作成
	job, err := svc.Submit(ctx, name, sources)
	if err != nil {
		slog.Error("ジョブ作成に失敗しました", "error", err)
		return err
	}

	fmt.Printf("ジョブを作成しました: %s\n", job.ID)

	// 2. 取り込みパイプラインを実行（解決→分割→埋め込み→インデックス）
	if err := svc.Ingest(ctx, job.ID); err != nil {
		slog.Error("取り込みに失敗しました", "jobID", job.ID, "error", err)
		return err
	}

	slog.Info("取り込みが完了しました", "jobID", job.ID)
	fmt.Printf("取り込みが完了しました: %s\n", job.ID)
	return nil
}

// JobShowAction はジョブ詳細を表示するコマンドのアクション
func JobShowAction(ctx context.Context, cmd *cli.Command) error {
	idArg := cmd.String("id")
	envFile := cmd.String("env")

	jobID, err := uuid.Parse(idArg)
	if err != nil {
		return fmt.Errorf("ジョブIDの形式が不正です: %w", err)
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	job, err := appCtx.Container.Jobs.GetJob(ctx, jobID)
	if err != nil {
		slog.Error("ジョブ取得に失敗しました", "jobID", jobID, "error", err)
		return err
	}

	printJob(job)
	return nil
}

// JobListAction はジョブ一覧を表示するコマンドのアクション
func JobListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	jobs, err := appCtx.Container.Jobs.ListJobs(ctx)
	if err != nil {
		slog.Error("ジョブ一覧取得に失敗しました", "error", err)
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("ジョブはありません")
		return nil
	}

	for _, job := range jobs {
		fmt.Printf("%s  %-8s  %s  (%d sources)  %s\n",
			job.ID,
			job.Status,
			job.CreatedAt.Format("2006-01-02 15:04:05"),
			len(job.Sources),
			job.Name,
		)
	}
	return nil
}

// printJob はジョブ詳細を整形して出力する
func printJob(job *rag.Job) {
	fmt.Printf("ID:        %s\n", job.ID)
	fmt.Printf("Name:      %s\n", job.Name)
	fmt.Printf("Status:    %s\n", job.Status)
	fmt.Printf("CreatedAt: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("Sources:")
	for i, source := range job.Sources {
		fmt.Printf("  [%d] %s\n", i, source)
	}
	if job.Error != "" {
		fmt.Printf("Error:     %s\n", job.Error)
	}
	if job.Answer != nil {
		fmt.Printf("Answer:\n%s\n", *job.Answer)
	}
}
