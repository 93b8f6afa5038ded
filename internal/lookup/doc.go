/*
Package lookup resolves the configuration of directory lookups and shapes
search results into records.

An invocation runs in fixed steps:

 1. ParseCall separates leading override mappings from the terms.
 2. Resolve merges built-in defaults, global defaults, the selected context
    and the call overrides into an EffectiveConfig.
 3. Expander.ExpandConnection renders url, binddn, bindpw, key and value
    against the ambient variables, and ParseAttributeSpec turns value into
    attribute directives.
 4. One directory session is opened and bound.
 5. For every term, Expander.ExpandSearch renders base, scope and filter with
    the additional bindings context and term, the session searches, and the
    Shaper and Accumulator turn entries into records.

Keyed results (key set) merge records sharing a key value by concatenating
attribute values; unkeyed results never merge.

Errors are *ConfigError, *TemplateError or *DirectoryError. Any error aborts
the invocation and discards records already collected.
*/
package lookup
