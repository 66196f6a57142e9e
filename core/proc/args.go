package proc

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

const argsFilename = "initargs"

var argsContext = &hcl.EvalContext{
	Variables: map[string]cty.Value{
		"True":  cty.True,
		"False": cty.False,
		"None":  cty.NullVal(cty.DynamicPseudoType),
	},
}

// ParseArgs parses the creation arguments of a processor: a comma separated
// list of literals, optionally followed by keyword arguments (name=value).
// Literals are numbers, strings in single or double quotes, True, False,
// None, lists in brackets and maps in braces. A lone identifier is taken as
// a string.
func ParseArgs(initArgs string) ([]interface{}, map[string]interface{}, error) {
	src := normalizeQuotes(strings.TrimSpace(initArgs))
	if src == "" {
		return nil, nil, nil
	}

	tokens, diags := hclsyntax.LexExpression([]byte(src), argsFilename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, nil, errors.Wrap(diags, "invalid arguments")
	}

	var args []interface{}
	kwargs := make(map[string]interface{})
	for _, segment := range splitArgs(tokens) {
		if len(segment) == 0 {
			return nil, nil, errors.Errorf("empty argument in %q", initArgs)
		}
		name := ""
		if len(segment) > 2 && segment[0].Type == hclsyntax.TokenIdent && segment[1].Type == hclsyntax.TokenEqual {
			name = string(segment[0].Bytes)
			segment = segment[2:]
		}
		start := segment[0].Range.Start.Byte
		end := segment[len(segment)-1].Range.End.Byte
		value, err := evalArg(src[start:end])
		if err != nil {
			return nil, nil, err
		}

		if name != "" {
			kwargs[name] = value
			continue
		}
		if len(kwargs) > 0 {
			return nil, nil, errors.Errorf("positional argument after keyword argument in %q", initArgs)
		}
		args = append(args, value)
	}
	return args, kwargs, nil
}

// splitArgs splits the tokens at the commas on the top level.
func splitArgs(tokens hclsyntax.Tokens) [][]hclsyntax.Token {
	var result [][]hclsyntax.Token
	var current []hclsyntax.Token
	depth := 0
	for _, token := range tokens {
		switch token.Type {
		case hclsyntax.TokenEOF, hclsyntax.TokenNewline:
			continue
		case hclsyntax.TokenOBrack, hclsyntax.TokenOBrace, hclsyntax.TokenOParen, hclsyntax.TokenTemplateInterp, hclsyntax.TokenTemplateControl:
			depth++
		case hclsyntax.TokenCBrack, hclsyntax.TokenCBrace, hclsyntax.TokenCParen, hclsyntax.TokenTemplateSeqEnd:
			depth--
		case hclsyntax.TokenComma:
			if depth == 0 {
				result = append(result, current)
				current = nil
				continue
			}
		}
		current = append(current, token)
	}
	return append(result, current)
}

func evalArg(src string) (interface{}, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), argsFilename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "invalid argument %q", src)
	}
	if traversal, ok := expr.(*hclsyntax.ScopeTraversalExpr); ok && len(traversal.Traversal) == 1 {
		name := traversal.Traversal.RootName()
		if _, known := argsContext.Variables[name]; !known {
			return name, nil
		}
	}
	value, diags := expr.Value(argsContext)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "invalid argument %q", src)
	}
	return fromCty(value)
}

func fromCty(value cty.Value) (interface{}, error) {
	if value.IsNull() {
		return nil, nil
	}
	if !value.IsWhollyKnown() {
		return nil, errors.New("unknown value")
	}
	t := value.Type()
	switch {
	case t == cty.String:
		return value.AsString(), nil
	case t == cty.Bool:
		return value.True(), nil
	case t == cty.Number:
		f := value.AsBigFloat()
		if f.IsInt() {
			if i, accuracy := f.Int64(); accuracy == big.Exact {
				return int(i), nil
			}
		}
		result, _ := f.Float64()
		return result, nil
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		result := make([]interface{}, 0, value.LengthInt())
		for it := value.ElementIterator(); it.Next(); {
			_, element := it.Element()
			v, err := fromCty(element)
			if err != nil {
				return nil, err
			}
			result = append(result, v)
		}
		return result, nil
	case t.IsObjectType() || t.IsMapType():
		result := make(map[string]interface{}, value.LengthInt())
		for it := value.ElementIterator(); it.Next(); {
			key, element := it.Element()
			v, err := fromCty(element)
			if err != nil {
				return nil, err
			}
			result[key.AsString()] = v
		}
		return result, nil
	}
	return nil, errors.Errorf("unsupported value of type %s", t.FriendlyName())
}

// normalizeQuotes turns single quoted strings into double quoted strings.
func normalizeQuotes(src string) string {
	if !strings.Contains(src, "'") {
		return src
	}
	var result strings.Builder
	inDouble := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inDouble:
			result.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				result.WriteByte(src[i])
			} else if c == '"' {
				inDouble = false
			}
		case c == '"':
			inDouble = true
			result.WriteByte(c)
		case c == '\'':
			var content strings.Builder
			j := i + 1
			for ; j < len(src) && src[j] != '\''; j++ {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				content.WriteByte(src[j])
			}
			result.WriteString(strconv.Quote(content.String()))
			i = j
		default:
			result.WriteByte(c)
		}
	}
	return result.String()
}
