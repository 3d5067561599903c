// Package entity defines the vocabulary shared by every layer of the resolver:
// the closed set of content domains (Type), the identity of one entity across
// domains (Key), and the display projection returned to callers (Reference).
//
// A Reference carries a tri-state Status. StatusExists and StatusAbsent are
// definitive answers from a domain loader; StatusUnknown marks a lookup that
// failed for a transient reason and should be rendered as a placeholder:
//
//	ref, _ := resolver.Resolve(ctx, entity.NewKey(entity.TypeItem, "potion-1"))
//	fmt.Println(ref.Label()) // "Potion of Healing", "missing item" or "unknown reference"
package entity
