package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// AskAction は質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	idArg := cmd.String("job")
	envFile := cmd.String("env")

	// 質問文の取得
	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	jobID, err := uuid.Parse(idArg)
	if err != nil {
		return fmt.Errorf("ジョブIDの形式が不正です: %w", err)
	}

	slog.Info("質問応答を開始", "jobID", jobID, "question", question)

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// 質問の埋め込み→検索→回答合成を実行
	answer, err := appCtx.Container.Service.Query(ctx, jobID, question)
	if err != nil {
		slog.Error("質問応答に失敗しました", "jobID", jobID, "error", err)
		return err
	}

	// 結果出力
	fmt.Println(answer)

	slog.Info("質問応答が完了しました", "jobID", jobID, "answerLength", len(answer))
	return nil
}
