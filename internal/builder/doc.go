/*
Package builder compiles the source of a handler routine into a Step Graph.

The routine language is indentation structured. Statements are assignments
(optionally annotated or augmented), awaited calls, bare expressions,
if/elif/else, while, for, break, continue, return, yield, raise,
try/except/finally and pass. Expressions are HCL native syntax, with the word
operators and, or, not, is and "is not" accepted as aliases.

Compilation runs in three phases:

 1. Lexing: physical lines become logical lines. Comments are stripped,
    bracketed and backslash continuations are joined, docstrings dropped and
    the common indentation removed. A leading "def forward(self, request):"
    header (with decorators) is unwrapped and supplies the parameter name.

 2. Parsing: a single pass over the logical lines builds a statement tree,
    keeping a map of the open blocks' indentation widths to reject
    inconsistent dedents.

 3. Compiling: each block is walked once, back to front, so every statement
    already knows its continuation step. A loop stack of (continue, break)
    targets resolves jumps. The routine ends in an implicit value-less return.

Names the routine reads but never binds are recorded as the graph's capture
list. Any failure aborts the build with a *BuildError; no partial graph is
returned.
*/
package builder
