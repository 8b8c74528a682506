package scope

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/graphql-go/graphql"
)

func (s *Scope) initGraphql() error {
	paramType, paramInput, tags := newParamsType("Params")

	paramMut := &graphql.Field{
		Type: paramType,
		Args: graphql.FieldConfigArgument{
			"params": &graphql.ArgumentConfig{Type: paramInput},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			args, ok := p.Args["params"].(map[string]interface{})
			if !ok {
				return nil, errors.New("missing arg: params")
			}
			err := s.modify(func(params *Parameters) error {
				return setParams(params, args, tags)
			})
			if err != nil {
				return nil, err
			}
			params := s.Params()
			return &params, nil
		},
	}
	columnsMut := &graphql.Field{
		Type: graphql.Int,
		Args: graphql.FieldConfigArgument{
			"n": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			n, ok := p.Args["n"].(int)
			if !ok {
				return nil, errors.New("missing arg: n")
			}
			s.SetColumns(n)
			return s.Columns(), nil
		},
	}

	rootQuery := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "RootQuery",
			Fields: graphql.Fields{
				"params": &graphql.Field{
					Type: paramType,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						params := s.Params()
						return &params, nil
					},
				},
				"columns": &graphql.Field{
					Type: graphql.Int,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return s.Columns(), nil
					},
				},
				"sampleRate": &graphql.Field{
					Type: graphql.Float,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return s.SampleRate(), nil
					},
				},
				"zoom": &graphql.Field{
					Type: graphql.Float,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return finite(s.Zoom()), nil
					},
				},
				"strategy": &graphql.Field{
					Type: graphql.String,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return s.Strategy().String(), nil
					},
				},
				"compression": &graphql.Field{
					Type: graphql.Float,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return finite(s.Compression()), nil
					},
				},
			},
		},
	)
	rootMut := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "RootMut",
			Fields: graphql.Fields{
				"params":  paramMut,
				"columns": columnsMut,
			},
		},
	)
	schema, err := graphql.NewSchema(
		graphql.SchemaConfig{
			Query:    rootQuery,
			Mutation: rootMut,
		},
	)
	if err != nil {
		return err
	}
	s.schema = schema
	return nil
}

// Query runs a GraphQL query or mutation against the scope.
func (s *Scope) Query(query string, vars map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  query,
		VariableValues: vars,
	})
}

// newParamsType builds an output and an input type from the json tags of
// Parameters.
func newParamsType(name string) (*graphql.Object, *graphql.InputObject, map[string]int) {
	fields := graphql.Fields{}
	inputFields := graphql.InputObjectConfigFieldMap{}

	ref := reflect.TypeOf(Parameters{})
	tags := make(map[string]int)
	for i := 0; i < ref.NumField(); i++ {
		f := ref.Field(i)
		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		tags[tag] = i

		var typ graphql.Type
		switch f.Type.Kind() {
		case reflect.Bool:
			typ = graphql.Boolean
		case reflect.Float32, reflect.Float64:
			typ = graphql.Float
		case reflect.Int, reflect.Int32, reflect.Int64:
			typ = graphql.Int
		default:
			panic(fmt.Sprint("unsupported param type ", f.Type))
		}
		fields[tag] = &graphql.Field{Type: typ, Resolve: fieldResolver(i)}
		inputFields[tag] = &graphql.InputObjectFieldConfig{Type: typ}
	}

	paramType := graphql.NewObject(
		graphql.ObjectConfig{
			Name:   name,
			Fields: fields,
		})
	inputType := graphql.NewInputObject(
		graphql.InputObjectConfig{
			Name:   "input" + name,
			Fields: inputFields,
		})
	return paramType, inputType, tags
}

func fieldResolver(field int) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		params, ok := p.Source.(*Parameters)
		if !ok {
			return nil, fmt.Errorf("unexpected source: %#v", p.Source)
		}
		return reflect.ValueOf(params).Elem().Field(field).Interface(), nil
	}
}

func setParams(params *Parameters, args map[string]interface{}, tags map[string]int) error {
	elem := reflect.ValueOf(params).Elem()
	for arg, val := range args {
		i, ok := tags[arg]
		if !ok {
			return fmt.Errorf("unknown param: %s", arg)
		}
		if val == nil {
			continue
		}
		field := elem.Field(i)
		v := reflect.ValueOf(val)
		if !v.Type().ConvertibleTo(field.Type()) {
			return fmt.Errorf("param %s: cant use %T as %v", arg, val, field.Type())
		}
		field.Set(v.Convert(field.Type()))
	}
	return nil
}

// finite maps values JSON cannot carry to null.
func finite(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
