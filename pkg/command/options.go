package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tanjun/pkg/injector"
)

// OptionType enumerates the supported option value types.
type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionInteger
	OptionBoolean
	OptionFloat
	OptionUser
	OptionChannel
	OptionRole
)

// Choice restricts an option to one of a fixed set of values.
type Choice struct {
	Name  string
	Value any
}

// Converter post-processes a parsed option value. Returning an error
// surfaces as a parser failure for message commands.
type Converter func(ctx context.Context, cctx Context, value any) (any, error)

// Option declares one command option. For slash commands options map to
// interaction options; for message commands they are parsed positionally
// from the residual text.
type Option struct {
	Type        OptionType
	Name        string
	Description string
	Required    bool
	Choices     []Choice
	MinValue    *float64
	MaxValue    *float64

	// Greedy makes a trailing string option consume the rest of the
	// message text instead of a single token.
	Greedy bool

	// Default is bound when an optional option is absent.
	Default any

	Convert Converter

	NameLocalizations        map[string]string
	DescriptionLocalizations map[string]string
}

// StringOption declares a string option.
func StringOption(name, description string) Option {
	return Option{Type: OptionString, Name: name, Description: description}
}

// IntOption declares an integer option.
func IntOption(name, description string) Option {
	return Option{Type: OptionInteger, Name: name, Description: description}
}

// BoolOption declares a boolean option.
func BoolOption(name, description string) Option {
	return Option{Type: OptionBoolean, Name: name, Description: description}
}

// FloatOption declares a float option.
func FloatOption(name, description string) Option {
	return Option{Type: OptionFloat, Name: name, Description: description}
}

// UserOption declares a user option.
func UserOption(name, description string) Option {
	return Option{Type: OptionUser, Name: name, Description: description}
}

// ChannelOption declares a channel option.
func ChannelOption(name, description string) Option {
	return Option{Type: OptionChannel, Name: name, Description: description}
}

// RoleOption declares a role option.
func RoleOption(name, description string) Option {
	return Option{Type: OptionRole, Name: name, Description: description}
}

// AsRequired marks the option as required.
func (o Option) AsRequired() Option {
	o.Required = true
	return o
}

// WithDefault sets the value bound when the option is absent.
func (o Option) WithDefault(v any) Option {
	o.Default = v
	return o
}

// WithChoices restricts the option to the given choices.
func (o Option) WithChoices(choices ...Choice) Option {
	o.Choices = choices
	return o
}

// WithMinValue sets the numeric lower bound.
func (o Option) WithMinValue(v float64) Option {
	o.MinValue = &v
	return o
}

// WithMaxValue sets the numeric upper bound.
func (o Option) WithMaxValue(v float64) Option {
	o.MaxValue = &v
	return o
}

// AsGreedy makes a trailing string option consume the remaining text.
func (o Option) AsGreedy() Option {
	o.Greedy = true
	return o
}

// WithConverter attaches a converter applied after parsing.
func (o Option) WithConverter(fn Converter) Option {
	o.Convert = fn
	return o
}

// LocalizeName adds a localised option name.
func (o Option) LocalizeName(locale, name string) Option {
	if o.NameLocalizations == nil {
		o.NameLocalizations = make(map[string]string)
	}
	o.NameLocalizations[locale] = name
	return o
}

// parseMessageArgs parses the residual text of a message invocation
// against the declared options. Failures are *ParserError.
func parseMessageArgs(ctx context.Context, cctx Context, opts []Option, residual string) (injector.Args, error) {
	tokens := strings.Fields(residual)
	args := make(injector.Args, len(opts))

	for i, opt := range opts {
		if len(tokens) == 0 {
			if opt.Required {
				return nil, &ParserError{
					Message:   fmt.Sprintf("missing required argument %q", opt.Name),
					Parameter: opt.Name,
				}
			}
			if opt.Default != nil {
				args[opt.Name] = opt.Default
			}
			continue
		}

		var raw string
		if opt.Greedy && opt.Type == OptionString && i == len(opts)-1 {
			raw = strings.Join(tokens, " ")
			tokens = nil
		} else {
			raw = tokens[0]
			tokens = tokens[1:]
		}

		value, err := convertToken(opt, raw)
		if err != nil {
			return nil, err
		}
		value, err = finishOption(ctx, cctx, opt, value)
		if err != nil {
			return nil, err
		}
		args[opt.Name] = value
	}

	if len(tokens) > 0 {
		return nil, &ParserError{Message: fmt.Sprintf("too many arguments: unexpected %q", tokens[0])}
	}
	return args, nil
}

// bindOptionValues validates and converts pre-resolved option values
// (from an interaction payload) against the declared options.
func bindOptionValues(ctx context.Context, cctx Context, opts []Option, values map[string]any) (injector.Args, error) {
	args := make(injector.Args, len(opts))
	for _, opt := range opts {
		value, ok := values[opt.Name]
		if !ok {
			if opt.Required {
				return nil, &ParserError{
					Message:   fmt.Sprintf("missing required option %q", opt.Name),
					Parameter: opt.Name,
				}
			}
			if opt.Default != nil {
				args[opt.Name] = opt.Default
			}
			continue
		}

		value, err := finishOption(ctx, cctx, opt, value)
		if err != nil {
			return nil, err
		}
		args[opt.Name] = value
	}
	return args, nil
}

func finishOption(ctx context.Context, cctx Context, opt Option, value any) (any, error) {
	if err := checkConstraints(opt, value); err != nil {
		return nil, err
	}
	if opt.Convert != nil {
		converted, err := opt.Convert(ctx, cctx, value)
		if err != nil {
			return nil, &ParserError{
				Message:   fmt.Sprintf("could not convert %q: %v", opt.Name, err),
				Parameter: opt.Name,
				Err:       err,
			}
		}
		value = converted
	}
	return value, nil
}

func convertToken(opt Option, raw string) (any, error) {
	fail := func(format string, args ...any) (any, error) {
		return nil, &ParserError{Message: fmt.Sprintf(format, args...), Parameter: opt.Name}
	}

	switch opt.Type {
	case OptionString:
		return raw, nil
	case OptionInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fail("%q is not a valid integer for %q", raw, opt.Name)
		}
		return v, nil
	case OptionFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fail("%q is not a valid number for %q", raw, opt.Name)
		}
		return v, nil
	case OptionBoolean:
		v, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return fail("%q is not a valid boolean for %q", raw, opt.Name)
		}
		return v, nil
	case OptionUser, OptionChannel, OptionRole:
		id, ok := parseMention(raw)
		if !ok {
			return fail("%q is not a valid mention or ID for %q", raw, opt.Name)
		}
		return id, nil
	}
	return fail("unsupported option type for %q", opt.Name)
}

func checkConstraints(opt Option, value any) error {
	if len(opt.Choices) > 0 {
		matched := false
		for _, c := range opt.Choices {
			if c.Value == value {
				matched = true
				break
			}
		}
		if !matched {
			return &ParserError{
				Message:   fmt.Sprintf("%v is not an allowed choice for %q", value, opt.Name),
				Parameter: opt.Name,
			}
		}
	}

	if opt.MinValue != nil || opt.MaxValue != nil {
		var n float64
		switch v := value.(type) {
		case int64:
			n = float64(v)
		case float64:
			n = v
		default:
			return nil
		}
		if opt.MinValue != nil && n < *opt.MinValue {
			return &ParserError{
				Message:   fmt.Sprintf("%v is below the minimum %v for %q", n, *opt.MinValue, opt.Name),
				Parameter: opt.Name,
			}
		}
		if opt.MaxValue != nil && n > *opt.MaxValue {
			return &ParserError{
				Message:   fmt.Sprintf("%v is above the maximum %v for %q", n, *opt.MaxValue, opt.Name),
				Parameter: opt.Name,
			}
		}
	}
	return nil
}

// parseMention extracts a snowflake from a raw ID or a <@id>, <@!id>,
// <#id> or <@&id> mention.
func parseMention(raw string) (string, bool) {
	id := raw
	if strings.HasPrefix(raw, "<") && strings.HasSuffix(raw, ">") {
		id = strings.Trim(raw, "<>")
		id = strings.TrimPrefix(id, "@")
		id = strings.TrimPrefix(id, "!")
		id = strings.TrimPrefix(id, "&")
		id = strings.TrimPrefix(id, "#")
	}
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}
