package keyword

import (
	"fmt"
	"strings"

	"github.com/hannadev/blogsearch/internal/rag"
)

const maxSourceRefs = 5

// ToSourceRefs projects the top hits into the client-facing source list.
func ToSourceRefs(hits []Hit) []rag.SourceRef {
	if len(hits) > maxSourceRefs {
		hits = hits[:maxSourceRefs]
	}
	refs := make([]rag.SourceRef, 0, len(hits))
	for _, hit := range hits {
		refs = append(refs, rag.SourceRef{
			Title:   hit.Doc.Title,
			TitleEn: hit.Doc.TitleEn,
			Slug:    hit.Doc.URL,
		})
	}
	return refs
}

// BuildPrompt renders the keyword-path generation prompt. Unlike the
// semantic path it only carries excerpts, so the instructions are phrased
// around SOURCES rather than full CONTEXT blocks. The citation marker
// contract is the same.
func BuildPrompt(query string, hits []Hit, locale string) string {
	locale = rag.NormalizeLocale(locale)

	if len(hits) == 0 {
		if locale == rag.LocaleEn {
			return fmt.Sprintf(`QUERY: %s

SOURCES:
No relevant sources found.

INSTRUCTIONS:
- Never invent content outside SOURCES.
- If the result is empty, reply with "No relevant information found on the blog."
- For unsupported topics, state clearly the data is not available.

ANSWER:`, query)
		}

		return fmt.Sprintf(`QUERY: %s

SOURCES:
관련된 소스를 찾지 못했습니다.

INSTRUCTIONS:
- SOURCES 외부의 내용을 만들어내지 마세요.
- 결과가 없으면 "블로그에서 관련 정보를 찾을 수 없습니다"라고 답변하세요.
- 지원하지 않는 주제는 데이터가 없음을 명확히 알리세요.

ANSWER:`, query)
	}

	summaryLabel := "요약"
	if locale == rag.LocaleEn {
		summaryLabel = "Summary"
	}

	rendered := make([]string, 0, len(hits))
	for i, hit := range hits {
		rendered = append(rendered, fmt.Sprintf("[%d] %s\nURL: %s\n%s: %s",
			i+1, hit.Doc.Title, hit.Doc.URL, summaryLabel, hit.Excerpt))
	}
	sources := strings.Join(rendered, "\n\n")

	if locale == rag.LocaleEn {
		return fmt.Sprintf(`QUERY: %s

SOURCES:
%s

INSTRUCTIONS:
- Only use facts that appear in SOURCES.
- Cite every referenced fact with (Source N) format.
- If multiple source items are relevant, cite all relevant indices.
- Keep responses concise and focused for software engineers.
- If unsure, ask a clarifying question instead of guessing.

ANSWER:`, query, sources)
	}

	return fmt.Sprintf(`QUERY: %s

SOURCES:
%s

INSTRUCTIONS:
- 오직 SOURCES에 나타난 사실만 사용하세요.
- 참조한 모든 사실을 (출처 N) 형식으로 인용하세요.
- 여러 소스 항목이 관련된 경우 모든 관련 인덱스를 인용하세요.
- 소프트웨어 엔지니어를 위해 간결하고 집중된 답변을 유지하세요.
- 확실하지 않으면 추측하지 말고 명확한 질문을 하세요.

ANSWER:`, query, sources)
}
