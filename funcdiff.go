package detour

import (
	"errors"
	"fmt"
	"reflect"
)

// signatureDiff records the positional differences between two function
// types. A nil entry means the position matches.
type signatureDiff struct {
	in  []*typeDiff
	out []*typeDiff
}

type typeDiff struct {
	target reflect.Type
	detour reflect.Type
}

func (d *signatureDiff) Error() error {
	errs := []error{}
	for i, arg := range d.in {
		if arg != nil {
			errs = append(errs, fmt.Errorf("argument %d: %v != %v", i, arg.target, arg.detour))
		}
	}
	for i, out := range d.out {
		if out != nil {
			errs = append(errs, fmt.Errorf("output %d: %v != %v", i, out.target, out.detour))
		}
	}

	return errors.Join(errs...)
}

// diffSignatures compares target and detour function types position by
// position, tolerating differing lengths.
func diffSignatures(target, detour reflect.Value) *signatureDiff {
	tt := target.Type()
	dt := detour.Type()

	return &signatureDiff{
		in:  diffTypes(tt.NumIn(), dt.NumIn(), tt.In, dt.In),
		out: diffTypes(tt.NumOut(), dt.NumOut(), tt.Out, dt.Out),
	}
}

func diffTypes(numTarget, numDetour int, target, detour func(int) reflect.Type) []*typeDiff {
	n := numTarget
	if numDetour > n {
		n = numDetour
	}

	diffs := make([]*typeDiff, n)
	for i := 0; i < n; i++ {
		switch {
		case i >= numTarget:
			diffs[i] = &typeDiff{detour: detour(i)}
		case i >= numDetour:
			diffs[i] = &typeDiff{target: target(i)}
		case target(i) != detour(i):
			diffs[i] = &typeDiff{target: target(i), detour: detour(i)}
		}
	}
	return diffs
}
