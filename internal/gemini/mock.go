package gemini

import (
	"context"
	"iter"
	"time"

	"github.com/hannadev/blogsearch/internal/rag"
)

// MockSources is the canned source list served in mock mode.
var MockSources = []rag.SourceRef{
	{Title: "React Fiber in Reconcile Phase", Slug: "/posts/react-fiber-in-reconcile-phase/"},
	{Title: "Building a Custom React Renderer", Slug: "/posts/building-a-custom-react-renderer/"},
}

// MockAnswer is the canned answer served in mock mode.
const MockAnswer = `React Fiber는 React 16에서 도입된 새로운 재조정(Reconciliation) 엔진입니다. 기존 Stack Reconciler의 한계를 극복하기 위해 설계되었으며, 작업을 작은 단위(fiber)로 나누어 비동기적으로 처리할 수 있는 것이 핵심입니다.

블로그 글에서 다룬 주요 내용은 다음과 같습니다:

- **Fiber 노드 구조**: 컴포넌트의 인스턴스와 1:1로 매핑되며, type, stateNode, child, sibling, return 등의 속성을 가집니다. (출처 1)

- **Reconcile Phase**: beginWork()와 completeWork() 두 단계를 거쳐 변경사항을 수집하고, Commit Phase에서 실제 DOM에 반영합니다. (출처 2)

- **비동기 처리**: 작업 우선순위 지정과 중단/재개가 가능해져, 사용자 인터랙션에 더 빠르게 반응할 수 있습니다.`

// MockGenerator streams a fixed answer in small timed chunks so the client
// streaming path can be exercised without a model call.
type MockGenerator struct {
	Answer    string
	ChunkSize int
	Delay     time.Duration
}

// NewMockGenerator returns a generator replaying MockAnswer in 6-rune
// chunks at 40ms intervals, mirroring real token pacing.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Answer:    MockAnswer,
		ChunkSize: 6,
		Delay:     40 * time.Millisecond,
	}
}

// Stream replays the canned answer, honoring context cancellation.
func (m *MockGenerator) Stream(ctx context.Context, _ string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		runes := []rune(m.Answer)
		size := m.ChunkSize
		if size < 1 {
			size = 1
		}

		for start := 0; start < len(runes); start += size {
			end := min(start+size, len(runes))
			if !yield(string(runes[start:end]), nil) {
				return
			}
			if m.Delay > 0 {
				select {
				case <-ctx.Done():
					yield("", ctx.Err())
					return
				case <-time.After(m.Delay):
				}
			}
		}
	}
}
