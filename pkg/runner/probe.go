package runner

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/nodeflow/nodeflow/pkg/scripts"
)

// runObject drives an object-style script: bind exported fields from the
// parameter values, call its Run method, then harvest artifacts.
func runObject(ctx context.Context, job any, params map[string]any, logf scripts.LogFunc) (map[string]any, error) {
	value := reflect.ValueOf(job)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("script object must be a pointer to a struct, got %T", job)
	}

	bindFields(value.Elem(), params, logf)

	if err := callRun(ctx, value, params, logf); err != nil {
		return nil, err
	}

	return harvestArtifacts(value.Elem()), nil
}

// bindFields assigns parameter values onto exported struct fields matching
// the parameter key case-insensitively. Unassignable values are skipped with
// a log line rather than failing the run.
func bindFields(target reflect.Value, params map[string]any, logf scripts.LogFunc) {
	targetType := target.Type()

	for i := 0; i < targetType.NumField(); i++ {
		field := targetType.Field(i)
		if !field.IsExported() {
			continue
		}

		paramValue, ok := lookupParam(params, field.Name)
		if !ok || paramValue == nil {
			continue
		}

		fieldValue := target.Field(i)
		supplied := reflect.ValueOf(paramValue)

		switch {
		case supplied.Type().AssignableTo(field.Type):
			fieldValue.Set(supplied)
		case supplied.Type().ConvertibleTo(field.Type):
			fieldValue.Set(supplied.Convert(field.Type))
		default:
			logf(fmt.Sprintf("parameter %s: cannot assign %T to field %s", field.Name, paramValue, field.Type))
		}
	}
}

func lookupParam(params map[string]any, fieldName string) (any, bool) {
	if value, ok := params[fieldName]; ok {
		return value, true
	}

	for key, value := range params {
		if strings.EqualFold(key, fieldName) {
			return value, true
		}
	}

	return nil, false
}

// callRun probes the object for a Run method. Supported forms, checked in
// order: Run(ctx, params, logf) error, Run(ctx) error, Run() error, Run().
// An object without any Run form has no entry point.
func callRun(ctx context.Context, object reflect.Value, params map[string]any, logf scripts.LogFunc) error {
	method := object.MethodByName("Run")
	if !method.IsValid() {
		logf("no entry point found in script")

		return nil
	}

	methodType := method.Type()

	var results []reflect.Value

	switch {
	case methodType.NumIn() == 3:
		results = method.Call([]reflect.Value{
			reflect.ValueOf(ctx),
			reflect.ValueOf(params),
			reflect.ValueOf(logf),
		})
	case methodType.NumIn() == 1:
		results = method.Call([]reflect.Value{reflect.ValueOf(ctx)})
	case methodType.NumIn() == 0:
		results = method.Call(nil)
	default:
		return fmt.Errorf("unsupported Run signature with %d arguments", methodType.NumIn())
	}

	if len(results) == 0 {
		return nil
	}

	if err, ok := results[len(results)-1].Interface().(error); ok && err != nil {
		return err
	}

	return nil
}

// harvestArtifacts lifts an exported Artifacts field off the object after
// the run, when present.
func harvestArtifacts(object reflect.Value) map[string]any {
	field := object.FieldByName("Artifacts")
	if !field.IsValid() {
		return nil
	}

	artifacts, ok := field.Interface().(map[string]any)
	if !ok {
		return nil
	}

	return artifacts
}
