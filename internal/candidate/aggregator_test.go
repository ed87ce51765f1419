package candidate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hirepal/internal/domain"
)

func chunk(filename, content string, score float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{SourceFilename: filename, Content: content, Score: score}
}

func TestBuild_CollapsesChunksFromSameFile(t *testing.T) {
	a := NewAggregator(Options{})
	out := a.Build([]domain.RetrievedChunk{
		chunk("jane_doe.pdf", "Senior data scientist. Python and SQL.", 0.91),
		chunk("john-smith.pdf", "Backend engineer with Java.", 0.88),
		chunk("jane_doe.pdf", "Led a Kubernetes migration.", 0.75),
	})

	require.Len(t, out, 2)
	require.Equal(t, "Jane Doe", out[0].DisplayName)
	require.Equal(t, "John Smith", out[1].DisplayName)
	require.Contains(t, out[0].RelevantContent, "Senior data scientist")
	require.Contains(t, out[0].RelevantContent, "Kubernetes migration")
	require.Equal(t, []string{"Python", "Kubernetes", "SQL"}, out[0].Skills)
}

func TestBuild_SameFilenameDifferentContentYieldsOneCandidate(t *testing.T) {
	out := NewAggregator(Options{}).Build([]domain.RetrievedChunk{
		chunk("a.pdf", "first", 0.9),
		chunk("a.pdf", "second", 0.8),
	})
	require.Len(t, out, 1)
	require.Equal(t, "first ... second", out[0].RelevantContent)
}

func TestBuild_DuplicateContentIsNotRepeated(t *testing.T) {
	out := NewAggregator(Options{}).Build([]domain.RetrievedChunk{
		chunk("a.pdf", "same  text", 0.9),
		chunk("a.pdf", "same text", 0.8),
	})
	require.Len(t, out, 1)
	require.Equal(t, "same text", out[0].RelevantContent)
}

func TestBuild_CapsAtMaxDisplay(t *testing.T) {
	var chunks []domain.RetrievedChunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("person_%02d.pdf", i), "text", 0.9))
	}
	out := NewAggregator(Options{}).Build(chunks)
	require.Len(t, out, DefaultMaxDisplay)
	require.Equal(t, "person 00", out[0].IdentityKey)
	require.Equal(t, "person 04", out[4].IdentityKey)
}

func TestBuild_DropsNonSourceFiles(t *testing.T) {
	out := NewAggregator(Options{}).Build([]domain.RetrievedChunk{
		chunk("notes.txt", "Python developer", 0.9),
		chunk("", "orphan chunk", 0.9),
		chunk("Jane_Doe.PDF", "Go developer", 0.8),
	})
	require.Len(t, out, 1)
	require.Equal(t, "Jane Doe", out[0].IdentityKey)
}

func TestBuild_NoValidFilenames(t *testing.T) {
	out := NewAggregator(Options{}).Build([]domain.RetrievedChunk{chunk("x.docx", "text", 0.9)})
	require.Empty(t, out)
}

func TestBuild_CVLinkUsesOriginalFilename(t *testing.T) {
	out := NewAggregator(Options{}).Build([]domain.RetrievedChunk{chunk("jane_doe.pdf", "text", 0.9)})
	require.Len(t, out, 1)
	require.Equal(t, DefaultCVBaseURL+"jane_doe.pdf", out[0].CVLink)
	require.Equal(t, "Jane Doe", out[0].DisplayName)
}

func TestBuild_ExcerptIsBounded(t *testing.T) {
	long := strings.Repeat("a", 800)
	out := NewAggregator(Options{ExcerptChars: 100}).Build([]domain.RetrievedChunk{chunk("a.pdf", long, 0.9)})
	require.Len(t, out, 1)
	require.Equal(t, strings.Repeat("a", 100)+"...", out[0].RelevantContent)
}

func TestBuild_NumberOfCandidatesMatchesDistinctKeys(t *testing.T) {
	out := NewAggregator(Options{}).Build([]domain.RetrievedChunk{
		chunk("jane_doe.pdf", "x", 0.9),
		chunk("jane-doe.pdf", "y", 0.9),
		chunk("folder/jane doe.pdf", "z", 0.9),
		chunk("bob.pdf", "w", 0.9),
	})
	require.Len(t, out, 2)
	require.Equal(t, "jane_doe.pdf", out[0].SourceFilename)
}

func TestIdentityKey(t *testing.T) {
	cases := map[string]string{
		"jane_doe.pdf":             "jane doe",
		"Jane-Doe.pdf":             "Jane Doe",
		"cvs/John  Smith_CV.pdf":   "John Smith CV",
		`C:\cvs\ana.maria.pdf`:     "ana maria",
		"  maria__lopez--2024.pdf": "maria lopez 2024",
		"":                         "",
	}
	for in, want := range cases {
		require.Equal(t, want, IdentityKey(in), "filename=%q", in)
	}
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Jane Doe", DisplayName("jane doe"))
	require.Equal(t, "Jane Doe", DisplayName("JANE DOE"))
}

func TestCVLink(t *testing.T) {
	require.Equal(t, "https://cdn.example.com/cvs/jane_doe.pdf", CVLink("https://cdn.example.com/cvs", "jane_doe.pdf"))
	require.Equal(t, "https://cdn.example.com/cvs/jane_doe.pdf", CVLink("https://cdn.example.com/cvs/", "jane_doe.pdf"))
}

func TestExtractSkills(t *testing.T) {
	text := "Built REST services in Java and JavaScript, deployed with Docker on AWS; some Python too."
	require.Equal(t, []string{"Python", "JavaScript", "Java", "AWS", "Docker"}, ExtractSkills(text, DefaultSkills, 5))
	require.Empty(t, ExtractSkills("gardening", DefaultSkills, 5))
	require.Nil(t, ExtractSkills(text, DefaultSkills, 0))
}

func TestExtractSkills_DedupesByDisplay(t *testing.T) {
	vocab := []Skill{{"golang", "Go"}, {"go ", "Go"}, {"grpc", "gRPC"}}
	require.Equal(t, []string{"Go", "gRPC"}, ExtractSkills("golang and go with grpc", vocab, 5))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abc", 3))
	require.Equal(t, "ab...", Truncate("abc", 2))
	require.Equal(t, "", Truncate("abc", 0))
	require.Equal(t, "żó...", Truncate("żółw", 2))
}
