package candidate

import "strings"

// Skill is a vocabulary entry: Term is matched case-insensitively as a
// substring, Display is what recruiters see.
type Skill struct {
	Term    string
	Display string
}

// DefaultSkills is the fixed skill vocabulary, in reporting order.
var DefaultSkills = []Skill{
	{"python", "Python"},
	{"typescript", "TypeScript"},
	{"javascript", "JavaScript"},
	{"java", "Java"},
	{"react", "React"},
	{"node", "Node.js"},
	{"aws", "AWS"},
	{"docker", "Docker"},
	{"kubernetes", "Kubernetes"},
	{"nosql", "NoSQL"},
	{"postgresql", "PostgreSQL"},
	{"sql", "SQL"},
	{"mongodb", "MongoDB"},
	{"html", "HTML"},
	{"css", "CSS"},
	{"vue", "Vue"},
	{"angular", "Angular"},
	{"django", "Django"},
	{"flask", "Flask"},
	{"fastapi", "FastAPI"},
	{"graphql", "GraphQL"},
	{"git", "Git"},
	{"ci/cd", "CI/CD"},
	{"agile", "Agile"},
	{"scrum", "Scrum"},
	{"rest", "REST"},
}

// ExtractSkills returns up to limit vocabulary skills found in text, in
// vocabulary order, without duplicates.
func ExtractSkills(text string, vocabulary []Skill, limit int) []string {
	if limit <= 0 {
		return nil
	}
	lower := strings.ToLower(text)
	seen := make(map[string]struct{}, limit)
	out := make([]string, 0, limit)
	for _, s := range vocabulary {
		term := strings.ToLower(strings.TrimSpace(s.Term))
		if term == "" || !strings.Contains(lower, term) {
			continue
		}
		if _, ok := seen[s.Display]; ok {
			continue
		}
		seen[s.Display] = struct{}{}
		out = append(out, s.Display)
		if len(out) == limit {
			break
		}
	}
	return out
}
