package rag

import (
	"fmt"
	"strings"
)

// maxSourceRefs limits the source list sent to the client.
const maxSourceRefs = 5

// BuildContext merges hits sharing a source URL into one block so a document
// sampled several times shows up as a single numbered source. Citation
// indices are 1-based in first-seen order.
func BuildContext(hits []SemanticHit) []ContextBlock {
	type merged struct {
		title   string
		titleEn string
		url     string
		texts   []string
	}

	byURL := make(map[string]*merged)
	var order []string

	for _, hit := range hits {
		url := hit.Chunk.Metadata.URL
		entry := byURL[url]
		if entry == nil {
			entry = &merged{
				title:   hit.Chunk.Metadata.Title,
				titleEn: hit.Chunk.Metadata.TitleEn,
				url:     url,
			}
			byURL[url] = entry
			order = append(order, url)
		}
		entry.texts = append(entry.texts, hit.Chunk.Text)
	}

	blocks := make([]ContextBlock, 0, len(order))
	for i, url := range order {
		entry := byURL[url]
		blocks = append(blocks, ContextBlock{
			Index:   i + 1,
			Title:   entry.title,
			TitleEn: entry.titleEn,
			URL:     entry.url,
			Text:    strings.Join(entry.texts, "\n\n"),
		})
	}
	return blocks
}

// SourceRefs projects the merged context blocks into the client-facing
// source list, capped at maxSourceRefs.
func SourceRefs(hits []SemanticHit) []SourceRef {
	blocks := BuildContext(hits)
	if len(blocks) > maxSourceRefs {
		blocks = blocks[:maxSourceRefs]
	}

	refs := make([]SourceRef, 0, len(blocks))
	for _, block := range blocks {
		refs = append(refs, SourceRef{
			Title:   block.Title,
			TitleEn: block.TitleEn,
			Slug:    block.URL,
		})
	}
	return refs
}

// BuildPrompt renders the grounded generation prompt. With no context it
// renders the refusal template that forbids answering from outside
// knowledge; otherwise each context block is numbered and the instructions
// require (Source N) style citations. The citation marker wording is a
// contract with the client's linkification step.
func BuildPrompt(query string, hits []SemanticHit, locale string) string {
	locale = NormalizeLocale(locale)
	blocks := BuildContext(hits)

	if len(blocks) == 0 {
		if locale == LocaleEn {
			return fmt.Sprintf(`QUERY: %s

CONTEXT:
No relevant blog documents found.

INSTRUCTIONS:
- Clearly inform that no relevant information was found in the blog content.
- Do not generate answers from external knowledge or general common sense.
- Reply with "No relevant information found on the blog for this topic."
- Suggest other related questions that might be helpful.

ANSWER:`, query)
		}

		return fmt.Sprintf(`QUERY: %s

CONTEXT:
관련된 블로그 문서를 찾지 못했습니다.

INSTRUCTIONS:
- 블로그 콘텐츠에서 관련 정보를 찾지 못했음을 명확히 알리세요.
- 외부 지식이나 일반 상식으로 답변을 생성하지 마세요.
- "현재 블로그에서 해당 내용에 대한 정보를 찾을 수 없습니다"라고 안내하세요.
- 관련될 수 있는 다른 질문을 제안해주세요.

ANSWER:`, query)
	}

	rendered := make([]string, 0, len(blocks))
	for _, block := range blocks {
		rendered = append(rendered, fmt.Sprintf("[%d] %s\nURL: %s\nCONTENT:\n%s",
			block.Index, block.Title, block.URL, block.Text))
	}
	contextText := strings.Join(rendered, "\n\n")

	if locale == LocaleEn {
		return fmt.Sprintf(`QUERY: %s

CONTEXT:
%s

INSTRUCTIONS:
- Answer using only the information contained in the CONTEXT above.
- Do not guess or invent content not in CONTEXT.
- Always cite sources using (Source N) format when referencing information.
- Do not copy long quoted text verbatim.
- Format your answer in markdown.

ANSWER:`, query, contextText)
	}

	return fmt.Sprintf(`QUERY: %s

CONTEXT:
%s

INSTRUCTIONS:
- 오직 위 CONTEXT에 포함된 정보만 사용하여 답변하세요.
- CONTEXT에 없는 내용은 추측하거나 만들어내지 마세요.
- 답변 시 참고한 소스는 반드시 (출처 N) 형식으로 표기하세요.
- 인용 텍스트를 그대로 길게 복사하지 마세요.
- 마크다운 형식으로 답변하세요.

ANSWER:`, query, contextText)
}
