package id

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_" + uuid.NewString()
	}
	return prefix + "_" + id
}

func (g *Generator) GenerateAgentID() string {
	return g.generate("agt")
}

func (g *Generator) GeneratePromptVersionID() string {
	return g.generate("pv")
}

func (g *Generator) GenerateCallID() string {
	return g.generate("call")
}

func (g *Generator) GenerateAnalysisID() string {
	return g.generate("ana")
}

func (g *Generator) GenerateEvaluationID() string {
	return g.generate("eval")
}

func (g *Generator) GenerateOptimizationID() string {
	return g.generate("opt")
}

func (g *Generator) GenerateABTestID() string {
	return g.generate("abt")
}

func (g *Generator) GenerateVendorSyncID() string {
	return g.generate("vs")
}
