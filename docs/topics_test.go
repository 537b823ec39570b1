package docs

import (
	"bufio"
	"os"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// readmeTopics extracts the topic names listed in readme.md.
func readmeTopics(t *testing.T) []string {
	t.Helper()
	file, err := os.Open("readme.md")
	if err != nil {
		t.Fatalf("failed to open readme.md: %v", err)
	}
	defer file.Close()

	var topics []string
	topicRegex := regexp.MustCompile(`^\*\s+([^:]+):.*$`)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if matches := topicRegex.FindStringSubmatch(scanner.Text()); len(matches) > 1 {
			topics = append(topics, strings.TrimSpace(matches[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("error scanning readme.md: %v", err)
	}
	return topics
}

func TestTopics(t *testing.T) {
	// The readme is the table of contents: every topic it lists must load,
	// and every topic file must be listed.
	listed := readmeTopics(t)

	for _, topic := range listed {
		t.Run("load_"+topic, func(t *testing.T) {
			if _, err := GetTopic(topic); err != nil {
				t.Errorf("failed to get topic %q: %v", topic, err)
			}
		})
	}

	all, err := GetAllTopics()
	if err != nil {
		t.Fatal(err)
	}
	for _, topic := range all {
		if !slices.Contains(listed, topic) {
			t.Errorf("topic %q is not listed in readme.md", topic)
		}
	}
}

func TestGetAllTopics(t *testing.T) {
	all, err := GetAllTopics()
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(all, "readme") {
		t.Error("readme should not be a topic")
	}
	if !slices.IsSorted(all) {
		t.Errorf("topics are not sorted: %v", all)
	}
}

func TestUnknownTopic(t *testing.T) {
	if _, err := GetTopic("nope"); err == nil {
		t.Error("unknown topic should be an error")
	}
}

// TestTopicStructure parses each topic and checks its shape: exactly one
// top-level heading, and every fenced code block carries a language.
func TestTopicStructure(t *testing.T) {
	all, err := GetAllTopics()
	if err != nil {
		t.Fatal(err)
	}
	all = append(all, "readme")

	for _, topic := range all {
		t.Run(topic, func(t *testing.T) {
			content, err := docs.ReadFile(topic + ".md")
			if err != nil {
				t.Fatal(err)
			}
			root := goldmark.DefaultParser().Parse(text.NewReader(content))

			var titles int
			ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
				if !entering {
					return ast.WalkContinue, nil
				}
				switch node := n.(type) {
				case *ast.Heading:
					if node.Level == 1 {
						titles++
					}
				case *ast.FencedCodeBlock:
					if node.Info == nil || len(node.Info.Segment.Value(content)) == 0 {
						t.Error("fenced code block without a language")
					}
				}
				return ast.WalkContinue, nil
			})
			if titles != 1 {
				t.Errorf("got %d top-level headings, want 1", titles)
			}
		})
	}
}
