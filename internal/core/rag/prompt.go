package rag

import "strings"

// PassageSeparator はプロンプト内でパッセージを区切るセパレータ
const PassageSeparator = "\n---\n"

// BuildAnswerPrompt は質問応答用のプロンプトを構築します。
// パッセージをセパレータで連結したコンテキストブロックの後に質問を配置します。
// パッセージが空の場合はコンテキストブロックが空のままになります。
func BuildAnswerPrompt(question string, passages []string) string {
	var sb strings.Builder

	sb.WriteString("あなたは与えられたコンテキストに基づいて質問に回答するアシスタントです。\n")
	sb.WriteString("以下のコンテキストに含まれる情報のみを根拠として、正確かつ簡潔に回答してください。\n")
	sb.WriteString("コンテキストから回答できない場合は、推測せずにその旨を述べてください。\n\n")

	sb.WriteString("## コンテキスト\n")
	sb.WriteString(strings.Join(passages, PassageSeparator))
	sb.WriteString("\n\n")

	sb.WriteString("## 質問\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("## 回答\n")

	return sb.String()
}
