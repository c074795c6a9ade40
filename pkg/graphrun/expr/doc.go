/*
Package expr evaluates the branch conditions of if-else nodes.

# Structured conditions

Most graphs describe conditions as data: a variable selector, an operator
and an expected value. Cases group conditions with "and" or "or":

	id, ok, err := expr.FirstMatch([]expr.Case{{
	    ID:              "approved",
	    LogicalOperator: expr.LogicalAnd,
	    Conditions: []expr.Condition{
	        {VariableSelector: []string{"review", "score"}, Operator: expr.OpGreaterEq, Value: 7},
	        {VariableSelector: []string{"review", "verdict"}, Operator: expr.OpIs, Value: "pass"},
	    },
	}}, lookup)

Operators:

	contains, not contains     substring or list membership of the value
	start with, end with       string prefix and suffix
	is, is not                 string equality
	empty, not empty           nil, "" or an empty collection
	in, not in                 membership of the actual value in a list
	all of                     every listed value is contained
	= ≠ > < ≥ ≤                numeric comparison (== != >= <= also accepted)
	null, not null             presence of the variable

An unset variable compares as nil: "contains" and "is" are false and their
negations true.

# Expression strings

Compile parses a compact expression over flattened variable names:

	e, err := expr.Compile("llm.score >= 7 and (review.verdict == 'pass' or not review.flagged)")
	ok, err := e.Eval(pool.Flatten())

	<or>    := <and> { 'or' <and> }
	<and>   := <unary> { 'and' <unary> }
	<unary> := 'not' <unary> | '!' <unary> | '(' <or> ')' | <value> [ <op> <value> ]

Values are quoted strings, numbers, true, false, null or variable names.
Names that are not set evaluate to themselves as strings. == and != compare
numerically when both sides are numbers and as text otherwise.
*/
package expr
