package audio

// Tee copies every block from in to n outputs. The first output receives the
// block itself and the others a copy, so a receiver may hold on to a block
// for as long as the source allows. All outputs are closed when in is
// closed or done is.
func Tee(done <-chan struct{}, in <-chan []float32, n int) []<-chan []float32 {
	out := make([]chan []float32, n)
	ro := make([]<-chan []float32, n)
	for i := range out {
		out[i] = make(chan []float32)
		ro[i] = out[i]
	}

	go func() {
		for i := range out {
			defer close(out[i])
		}

		for {
			var x []float32
			var ok bool
			select {
			case <-done:
				return
			case x, ok = <-in:
				if !ok {
					return
				}
			}

			for i := range out {
				y := x
				if i > 0 {
					y = append([]float32(nil), x...)
				}
				select {
				case <-done:
					return
				case out[i] <- y:
				}
			}
		}
	}()

	return ro
}
