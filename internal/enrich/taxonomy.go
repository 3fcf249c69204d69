// Package enrich turns free-text job descriptions and resumes into the
// structured feature records the scorer consumes.
package enrich

// SkillCategory groups canonical skills for reporting and for the
// learning-ability heuristic.
type SkillCategory string

const (
	CategoryLanguage  SkillCategory = "language"
	CategoryFramework SkillCategory = "framework"
	CategoryDatabase  SkillCategory = "database"
	CategoryDevops    SkillCategory = "devops"
	CategorySoft      SkillCategory = "soft"
)

// Skill is one canonical taxonomy entry. Aliases are matched
// case-insensitively as substrings; hits collapse onto Name.
type Skill struct {
	Name     string
	Category SkillCategory
	Aliases  []string
}

// taxonomy is the static canonical skill list. Order matters: it is the
// tie-break ordering for strengths and gaps, so it must stay stable.
var taxonomy = []Skill{
	{Name: "python", Category: CategoryLanguage},
	{Name: "go", Category: CategoryLanguage, Aliases: []string{"golang"}},
	{Name: "java", Category: CategoryLanguage},
	{Name: "javascript", Category: CategoryLanguage, Aliases: []string{"js", "ecmascript"}},
	{Name: "typescript", Category: CategoryLanguage},
	{Name: "c++", Category: CategoryLanguage, Aliases: []string{"cpp"}},
	{Name: "c#", Category: CategoryLanguage, Aliases: []string{"csharp", ".net"}},
	{Name: "ruby", Category: CategoryLanguage},
	{Name: "php", Category: CategoryLanguage},
	{Name: "rust", Category: CategoryLanguage},
	{Name: "kotlin", Category: CategoryLanguage},
	{Name: "swift", Category: CategoryLanguage},
	{Name: "scala", Category: CategoryLanguage},
	{Name: "sql", Category: CategoryLanguage},
	{Name: "django", Category: CategoryFramework},
	{Name: "flask", Category: CategoryFramework},
	{Name: "fastapi", Category: CategoryFramework},
	{Name: "spring", Category: CategoryFramework, Aliases: []string{"spring boot"}},
	{Name: "react", Category: CategoryFramework, Aliases: []string{"reactjs", "react.js"}},
	{Name: "angular", Category: CategoryFramework},
	{Name: "vue", Category: CategoryFramework, Aliases: []string{"vuejs", "vue.js"}},
	{Name: "node", Category: CategoryFramework, Aliases: []string{"nodejs", "node.js"}},
	{Name: "rails", Category: CategoryFramework, Aliases: []string{"ruby on rails"}},
	{Name: "laravel", Category: CategoryFramework},
	{Name: "grpc", Category: CategoryFramework},
	{Name: "graphql", Category: CategoryFramework},
	{Name: "machine learning", Category: CategoryFramework, Aliases: []string{"ml engineering", "deep learning", "tensorflow", "pytorch"}},
	{Name: "postgresql", Category: CategoryDatabase, Aliases: []string{"postgres"}},
	{Name: "mysql", Category: CategoryDatabase},
	{Name: "mongodb", Category: CategoryDatabase, Aliases: []string{"mongo"}},
	{Name: "redis", Category: CategoryDatabase},
	{Name: "elasticsearch", Category: CategoryDatabase},
	{Name: "kafka", Category: CategoryDatabase},
	{Name: "rabbitmq", Category: CategoryDatabase},
	{Name: "clickhouse", Category: CategoryDatabase},
	{Name: "docker", Category: CategoryDevops},
	{Name: "kubernetes", Category: CategoryDevops, Aliases: []string{"k8s"}},
	{Name: "terraform", Category: CategoryDevops},
	{Name: "ansible", Category: CategoryDevops},
	{Name: "aws", Category: CategoryDevops, Aliases: []string{"amazon web services"}},
	{Name: "gcp", Category: CategoryDevops, Aliases: []string{"google cloud"}},
	{Name: "azure", Category: CategoryDevops},
	{Name: "ci/cd", Category: CategoryDevops, Aliases: []string{"cicd", "jenkins", "gitlab ci", "github actions"}},
	{Name: "linux", Category: CategoryDevops},
	{Name: "distributed systems", Category: CategoryDevops, Aliases: []string{"microservices"}},
	{Name: "monitoring", Category: CategoryDevops, Aliases: []string{"prometheus", "grafana", "observability"}},
	{Name: "git", Category: CategoryDevops},
	{Name: "agile", Category: CategorySoft, Aliases: []string{"scrum", "kanban"}},
	{Name: "leadership", Category: CategorySoft, Aliases: []string{"team lead", "mentoring"}},
	{Name: "communication", Category: CategorySoft},
	{Name: "problem solving", Category: CategorySoft, Aliases: []string{"analytical"}},
	{Name: "project management", Category: CategorySoft, Aliases: []string{"jira"}},
}

// rareSkillWeights feeds the job difficulty score. The sum of present
// weights is capped at 0.3 before clamping.
var rareSkillWeights = map[string]float64{
	"kubernetes":          0.15,
	"rust":                0.15,
	"machine learning":    0.15,
	"distributed systems": 0.10,
	"scala":               0.10,
	"clickhouse":          0.10,
}

// Output caps per spec: resumes tend to list more than postings ask for.
const (
	MaxCandidateSkills = 20
	MaxJobSkills       = 15
)

// TaxonomyRank returns the position of a canonical skill in the
// taxonomy, used for stable ordering of strengths and gaps. Unknown
// skills sort last.
func TaxonomyRank(name string) int {
	for i, s := range taxonomy {
		if s.Name == name {
			return i
		}
	}
	return len(taxonomy)
}

// CategoryOf returns the category of a canonical skill name.
func CategoryOf(name string) (SkillCategory, bool) {
	for _, s := range taxonomy {
		if s.Name == name {
			return s.Category, true
		}
	}
	return "", false
}
