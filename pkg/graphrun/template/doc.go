/*
Package template renders node text such as answer bodies, human-input
forms and template-transform outputs.

A Renderer recognises any combination of three placeholder styles:

  - {{#node.var#}} (Selector) addresses the variable pool by dotted path
  - ${name} (Brace) names a variable bound by the node
  - $name (Dollar) is the short form of Brace

Answer nodes render selectors against the pool:

	r := template.New(template.Selector, template.DropMissing)
	out, err := r.Render("Approved by {{#review.action_text#}}", template.PoolLookup(pool))

Placeholders that do not resolve are kept, dropped or reported in an
*UndefinedVariableError, depending on the Missing policy.
*/
package template
