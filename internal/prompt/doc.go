// Package prompt holds the structured model of an agent's compiled prompt.
//
// A compiled prompt is a sequence of level-2 ("## ") sections. The Document
// type keeps each section's verbatim text together with any knowledge base
// items that were merged into it, so rendering is exact and merges never
// need to scan item content for markers.
//
// # Compiling
//
//	doc, err := prompt.NewCompiler().Compile(fields)
//	text := doc.Render()
//
// # Knowledge base merge
//
//	doc := prompt.Parse(version.CompiledPrompt)
//	placement := doc.AddKnowledgeItem(prompt.KnowledgeItem{Name: "Pricing", Content: "..."})
//
// Placement follows the marker priority used by every compiled prompt:
// an existing "## KNOWLEDGE BASE CONTENT" section first, then a new content
// section after the first blank line of "## 6. Knowledge Base", then a new
// section at the end of the document.
package prompt
