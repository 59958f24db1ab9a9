package shard

// DescriptorType distinguishes how a shard descriptor's shard assignment is
// established.
type DescriptorType int

const (
	// Direct: this table is owned by a single FK column pointing straight
	// at the subject table.
	Direct DescriptorType = iota
	// Transitive: this table is owned via a chain of FK hops through one or
	// more intermediate tables before reaching the subject table.
	Transitive
	// Variable: the shard assignment is established by an OWNS-edge in a
	// different table — this row's home shard moves when some other row's
	// insert/update implies it, rather than being computed from this row's
	// own columns alone.
	Variable
)

// Descriptor describes one edge in the ownership graph, rooted at the table
// it is attached to.
type Descriptor struct {
	Type DescriptorType

	// ShardKind is the root data-subject table this path ends at.
	ShardKind string

	// DownColumn is the column in *this* table holding the foreign key.
	DownColumn string

	// NextTable and UpColumn are the table and column this edge points to.
	NextTable string
	UpColumn  string

	// IsVarowned mirrors Type == Variable; kept as an explicit flag because
	// it is checked far more often than Type is compared.
	IsVarowned bool
	// IsTransitive mirrors Type == Transitive.
	IsTransitive bool

	// AccessOnly: true if this edge confers GDPR GET visibility only — GDPR
	// FORGET does not copy or delete data along it.
	AccessOnly bool

	// Nullable reports whether DownColumn may hold NULL, used by
	// IsNullableChain to flag all-nullable ownership paths.
	Nullable bool
}

// Chain is an ordered list of descriptors from a table to the subject table
// whose shard_kind the chain resolves to (the last descriptor's NextTable
// equals ShardKind).
type Chain []Descriptor

// ShardKind returns the subject kind this chain terminates at.
func (c Chain) ShardKind() string {
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1].ShardKind
}

// AccessOnly reports whether following this entire chain only ever confers
// accessor rights — true iff every link is accessor-only.
func (c Chain) AccessOnly() bool {
	for _, d := range c {
		if !d.AccessOnly {
			return false
		}
	}
	return len(c) > 0
}

// AnnotationKind is the K9db-specific column constraint attached to a
// REFERENCES clause (§6.1).
type AnnotationKind int

const (
	OwnedBy AnnotationKind = iota
	Owns
	AccessedBy
	Accesses
)

// Annotation is one parsed foreign-key ownership annotation.
type Annotation struct {
	Kind AnnotationKind

	// Column is the FK column in the table the annotation is attached to.
	Column string

	// RefTable/RefColumn is the table(column) the FK references.
	RefTable  string
	RefColumn string

	// Nullable reports whether Column may hold NULL — used by
	// IsNullableChain to warn about all-nullable ownership paths.
	Nullable bool
}
