package backends

// OpType is an enum of the node kinds a Backend may be asked to execute.
//
// Operator factories in the graph package map the user-visible catalog onto
// these kinds: many catalog entries are compositions (e.g. Var, Softmax,
// LogSumExp) and never reach a backend as a kind of their own.
//
// Kinds suffixed with Grad are internal: they are only issued during the
// backward pass, for operations whose gradient is not expressible as a
// composition of the forward kinds.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota

	// Leaf and structural kinds.
	OpTypeConstant
	OpTypeParameter
	OpTypeIdentity
	OpTypeStopGradient
	OpTypeClipGradient
	OpTypeLambda
	OpTypeDebug

	// Elementwise unary kinds.
	OpTypeNeg
	OpTypeAbs
	OpTypeSign
	OpTypeExp
	OpTypeLog
	OpTypeSin
	OpTypeCos
	OpTypeTan
	OpTypeTanh
	OpTypeSigmoid
	OpTypeRelu
	OpTypeSqrt
	OpTypeClip

	// Elementwise binary kinds, with implicit broadcasting.
	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeDiv
	OpTypeMaximum
	OpTypeMinimum

	// Comparisons: numeric 0/1 results in the operand dtype.
	OpTypeLessThan
	OpTypeLessOrEqual
	OpTypeGreaterThan
	OpTypeGreaterOrEqual
	OpTypeEqual
	OpTypeNotEqual

	// Reductions over exactly one axis, kept with size 1.
	OpTypeReduceSum
	OpTypeReduceMean
	OpTypeReduceMax
	OpTypeReduceMin
	OpTypeReduceProd

	// Shape manipulation.
	OpTypeReshape
	OpTypeTranspose
	OpTypeConcatenate
	OpTypeSlice
	OpTypeShift
	OpTypeCast

	// Contractions.
	OpTypeDot
	OpTypeBatchedDot
	OpTypeAffine

	// Indexing.
	OpTypeGather
	OpTypeTopKIndices
	OpTypeGatherGrad

	// Pooling over the last two axes.
	OpTypeMaxPool
	OpTypeAvgPool
	OpTypeMaxPoolGrad
	OpTypeAvgPoolGrad

	// OpTypeLast is a sentinel, used to size kernel dispatch tables.
	OpTypeLast
)
