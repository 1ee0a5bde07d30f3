package engine

import (
	"log"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUReport logs what the CPU backend will be running on.
func CPUReport(engineName string) {
	var feats []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.SSE4, "SSE4"},
		{cpuid.AVX, "AVX"},
		{cpuid.AVX2, "AVX2"},
		{cpuid.FMA3, "FMA3"},
		{cpuid.AVX512F, "AVX512F"},
		{cpuid.ASIMD, "ASIMD"},
	} {
		if cpuid.CPU.Supports(f.id) {
			feats = append(feats, f.name)
		}
	}
	if len(feats) == 0 {
		feats = append(feats, "none")
	}

	log.Printf("Engine %s on %s (%d logical cores, SIMD: %s)",
		engineName, cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, strings.Join(feats, ","))
}
