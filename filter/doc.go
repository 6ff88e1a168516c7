// Package filter provides parsing and compilation of textual filter
// specifications into vectorized predicates over Arrow record batches.
//
// A filter specification is a list of textual tokens, order-independent,
// combined with logical AND:
//
//	column=value      equality
//	column!=NULL      not-null (the only supported != form)
//	column>=value     range; value is date-parsed when it is an ISO
//	                  calendar date (YYYY-MM-DD), otherwise compared
//	                  as raw text
//	column            bare column name: group-by histogram request
//
// Tokens are parsed once into a Spec, then compiled against the dataset
// schema with Compile before any scanning begins. Compilation validates
// every referenced column up front and resolves a typed evaluator per
// predicate, so a misspelled column fails fast instead of mid-scan.
//
// # Basic Usage
//
//	spec, err := filter.ParseTokens([]string{"court_type=FD", "attorneys!=NULL", "court_type"})
//	if err != nil {
//	    return err
//	}
//	ps, err := filter.Compile(spec, dataset.Schema())
//	if err != nil {
//	    return err // filter.ErrPredicate: unknown column, unsupported type
//	}
//
//	mask, err := ps.EvalMask(record)
//
// # Existence Predicate
//
// The existence predicate tests whether a row's nested list column holds
// at least one child record with a non-null target field (for the court
// opinion dataset: at least one opinion with opinion_text). It is enabled
// on the Spec rather than through a token:
//
//	spec.Existence = true
//	spec.ExistenceColumn = "opinions"     // default
//	spec.ExistenceField = "opinion_text"  // default
//
// Its evaluation is fully vectorized: a prefix sum over the flattened
// child validity bitmap answers every row's "any non-null child?"
// question in a single linear pass, with no per-row iteration into the
// nested structure.
package filter
