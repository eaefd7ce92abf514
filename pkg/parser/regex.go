package parser

import "regexp"

var (
	// fencedJSONPatterns は ```json フェンス内のオブジェクト/配列をキャプチャします。
	fencedJSONPatterns = []*regexp.Regexp{
		regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```"),
		regexp.MustCompile("(?s)```json\\s*(\\[.*?\\])\\s*```"),
	}

	// rawJSONPatterns はフェンスなしで "score" キーを含むJSONオブジェクトを探します。
	rawJSONPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\{[^{}]*"score"[^{}]*\}`),
		regexp.MustCompile(`(?s)\{.*?"score".*?\}`),
	}

	// 手動キー抽出用のパターンなのだ。JSONが壊れていても個別フィールドを拾うのだ。
	scoreKeyRegex     = regexp.MustCompile(`(?is)(?:score|result)["':\s]*["']?(pass|fail)["']?`)
	reasoningKeyRegex = regexp.MustCompile(`(?is)(?:reasoning|explanation)["':\s]*["']([^"']+)["']`)
	promptKeyRegex    = regexp.MustCompile(`(?is)(?:enhanced_prompt|prompt)["':\s]*["']([^"']+)["']`)

	// ApprovedHeaderRegex は承認済みファイルの先頭マーカー行を特定します。
	ApprovedHeaderRegex = regexp.MustCompile(`APPROVED FINAL PROMPT:\s*`)

	// FinalPromptLineRegex は "Final prompt is N words" 形式の行を特定します。
	FinalPromptLineRegex = regexp.MustCompile(`(?i)Final prompt[^\n]*\n`)

	// OriginalPromptRegex は "Original Prompt:" セクションの開始を特定します。
	OriginalPromptRegex = regexp.MustCompile(`Original Prompt:\s*`)

	// メタデータトレーラー行のパターンなのだ。
	evaluationIDRegex = regexp.MustCompile(`Database evaluation_id:\s*(\d+)`)
	promptIDRegex     = regexp.MustCompile(`Database prompt_id:\s*(\d+)`)
	themeLineRegex    = regexp.MustCompile(`Theme:\s*(.+)`)

	// 整形時に取り除く構造マーカーなのだ。
	boldMarkerRegex    = regexp.MustCompile(`\*\*[^*]+\*\*\s*`)
	sectionHeaderRegex = regexp.MustCompile(`(?m)^[A-Z][^:\n]*:\s*`)
	newlineRunRegex    = regexp.MustCompile(`\n+`)
	whitespaceRunRegex = regexp.MustCompile(`\s+`)

	// TimestampedFileRegex は "<theme>_YYYYMMDD_HHMMSS_<NN>.txt" 形式のファイル名を分解します。
	TimestampedFileRegex = regexp.MustCompile(`^(.+)_\d{8}_\d{6}_(\d+)\.txt$`)

	// TimestampSuffixRegex はファイル名中の "_YYYYMMDD_HHMMSS" 部分を特定します。
	TimestampSuffixRegex = regexp.MustCompile(`_(\d{8})_(\d{6})`)
)
