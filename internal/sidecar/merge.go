package sidecar

import pjson "bidsevents/internal/parser/json"

// Merge returns base overridden by closer. Objects present on both sides
// merge recursively; any other value from closer replaces base's. Keys keep
// base's order, with keys new in closer appended in closer's order. Neither
// input is modified.
func Merge(base, closer *pjson.Object) *pjson.Object {
	out := base.Clone()
	if out == nil {
		out = pjson.NewObject()
	}
	for _, k := range closer.Keys() {
		cv, _ := closer.Get(k)
		if bo, ok := asObject(out, k); ok {
			if co, ok := cv.(*pjson.Object); ok {
				out.Set(k, Merge(bo, co))
				continue
			}
		}
		if co, ok := cv.(*pjson.Object); ok {
			out.Set(k, co.Clone())
			continue
		}
		out.Set(k, cv)
	}
	return out
}

func asObject(o *pjson.Object, k string) (*pjson.Object, bool) {
	v, ok := o.Get(k)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*pjson.Object)
	return obj, ok
}
