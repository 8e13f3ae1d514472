// Package gifdecode plays animated GIFs as tiletex frame decoders.
//
// Decoder composites frames onto the logical screen, honoring the
// none, background and previous disposal methods and the GIF loop count.
// Frame delays below MinDelay are replaced by DefaultDelay.
//
// Builder defers parsing to the decode goroutine of an AnimatedTexture:
//
//	first, err := gifdecode.DecodeFirst(data)
//	if err != nil {
//	    return err
//	}
//	tex, err := tiletex.NewAnimatedTextureFromBuilder(first,
//	    gifdecode.NewBytesBuilder(data), uploader)
//	if err != nil {
//	    return err
//	}
//	tex.Start()
package gifdecode
