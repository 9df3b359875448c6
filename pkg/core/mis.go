package core

// MISWeight combines two sampling strategies with the power heuristic (beta = 2).
// A zero pdfA yields zero; a zero pdfB with positive pdfA yields one.
func MISWeight(pdfA, pdfB float64) float64 {
	if pdfA <= 0 {
		return 0
	}
	a := pdfA * pdfA
	return a / (a + pdfB*pdfB)
}

// PowerHeuristic calculates the power heuristic weight for multiple importance sampling
func PowerHeuristic(nf int, fPdf float64, ng int, gPdf float64) float64 {
	f := float64(nf) * fPdf
	g := float64(ng) * gPdf
	if f <= 0 {
		return 0
	}
	return (f * f) / (f*f + g*g)
}
