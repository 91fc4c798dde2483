//go:build !govips || !cgo

package compositor

func Startup() error {
	return nil
}

func Shutdown() {}

func newResampler() (Resampler, error) {
	return lanczosResampler{}, nil
}

func newEncoder(jpegQuality int) (Encoder, error) {
	return stdEncoder{jpegQuality: jpegQuality}, nil
}
