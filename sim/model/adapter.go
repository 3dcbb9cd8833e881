package model

// Adapter drives one instance of an external step-based model. Value references
// identify variables inside the model. Times are nanoseconds of simulation time.
type Adapter interface {
	SetupExperiment(start, stop uint64, tolerance float64) error
	EnterInitializationMode() error
	ExitInitializationMode() error
	// StepUntil advances the model to t and returns the time actually reached.
	StepUntil(t uint64) (uint64, error)
	Terminate() error

	ReadReal(vr uint64) (float64, error)
	WriteReal(vr uint64, v float64) error
	ReadInteger(vr uint64) (int32, error)
	WriteInteger(vr uint64, v int32) error
	ReadBoolean(vr uint64) (bool, error)
	WriteBoolean(vr uint64, v bool) error
	ReadString(vr uint64) (string, error)
	WriteString(vr uint64, v string) error
}

// DerivativeAdapter is implemented by adapters that accept input derivatives and
// expose output derivatives.
type DerivativeAdapter interface {
	SetRealInputDerivative(vr uint64, order int, v float64) error
	RealOutputDerivative(vr uint64, order int) (float64, error)
}
